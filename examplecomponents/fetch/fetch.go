// Package fetch is a demo core.Tool fetching and format-converting web
// content, grounded on tools/builtin/fetch.go's FetchTool, adapted from the
// teacher's Execute(ctx, json.RawMessage) (json.RawMessage, error) +
// BaseTool composition into the core.Tool interface this runtime defines
// (Name/Description/JSONSchema/Invoke). Exists to give C2 (scheduler) and
// C6 (selector) a real, slow, describable tool to exercise in tests rather
// than a synthetic stub.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/HPD-AI/agentrt/core"
)

// Tool fetches a URL and returns its content converted to the requested
// format.
type Tool struct {
	client      *http.Client
	maxBodySize int64
}

type request struct {
	URL     string `json:"url"`
	Format  string `json:"format"`
	Timeout int    `json:"timeout,omitempty"`
}

type response struct {
	Success   bool   `json:"success"`
	Content   string `json:"content,omitempty"`
	URL       string `json:"url,omitempty"`
	Format    string `json:"format,omitempty"`
	Size      int64  `json:"size,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`
	Error     string `json:"error,omitempty"`
}

// New builds a fetch tool; maxBodySize <= 0 defaults to 5MB, matching the
// teacher's NewFetchTool.
func New(maxBodySize int64) *Tool {
	if maxBodySize <= 0 {
		maxBodySize = 5 * 1024 * 1024
	}
	return &Tool{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		maxBodySize: maxBodySize,
	}
}

func (t *Tool) Name() string { return "fetch" }

func (t *Tool) Description() string {
	return "Fetch and process content from URLs with format conversion support"
}

func (t *Tool) JSONSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "The URL to fetch content from",
			},
			"format": map[string]interface{}{
				"type":        "string",
				"description": "Output format: text (plain text), markdown (converted from HTML), or html (raw HTML body)",
				"enum":        []string{"text", "markdown", "html"},
			},
			"timeout": map[string]interface{}{
				"type":        "number",
				"description": "Optional timeout in seconds (max 120, default 30)",
			},
		},
		"required": []string{"url", "format"},
	}
}

func (t *Tool) Invoke(ctx context.Context, argumentsJSON []byte) ([]byte, error) {
	var req request
	if err := json.Unmarshal(argumentsJSON, &req); err != nil {
		return errorPayload("failed to parse fetch parameters: " + err.Error())
	}
	if req.URL == "" {
		return errorPayload("url parameter is required")
	}
	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		return errorPayload("url must start with http:// or https://")
	}
	format := strings.ToLower(req.Format)
	if format != "text" && format != "markdown" && format != "html" {
		return errorPayload("format must be one of: text, markdown, html")
	}

	reqCtx := ctx
	if req.Timeout > 0 {
		const maxTimeout = 120
		if req.Timeout > maxTimeout {
			req.Timeout = maxTimeout
		}
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, time.Duration(req.Timeout)*time.Second)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodGet, req.URL, nil)
	if err != nil {
		return errorPayload(fmt.Sprintf("failed to create request: %v", err))
	}
	httpReq.Header.Set("User-Agent", "agentrt-fetch/1.0")

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return errorPayload(fmt.Sprintf("failed to fetch url: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errorPayload(fmt.Sprintf("request failed with status code: %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBodySize))
	if err != nil {
		return errorPayload(fmt.Sprintf("failed to read response body: %v", err))
	}
	content := string(body)
	if !utf8.ValidString(content) {
		return errorPayload("response content is not valid utf-8")
	}

	contentType := resp.Header.Get("Content-Type")
	isHTML := strings.Contains(contentType, "text/html")
	truncated := false

	switch format {
	case "text":
		if isHTML {
			text, err := extractText(content)
			if err != nil {
				return errorPayload(fmt.Sprintf("failed to extract text from html: %v", err))
			}
			content = text
		}
	case "markdown":
		if isHTML {
			markdown, err := convertToMarkdown(content)
			if err != nil {
				return errorPayload(fmt.Sprintf("failed to convert html to markdown: %v", err))
			}
			content = markdown
		}
	case "html":
		if isHTML {
			body, err := extractBody(content)
			if err != nil {
				return errorPayload(fmt.Sprintf("failed to parse html: %v", err))
			}
			if body == "" {
				return errorPayload("no body content found in html")
			}
			content = "<html>\n<body>\n" + body + "\n</body>\n</html>"
		}
	}

	size := int64(len(content))
	if size > t.maxBodySize {
		content = content[:t.maxBodySize]
		content += fmt.Sprintf("\n\n[content truncated to %d bytes]", t.maxBodySize)
		truncated = true
	}

	return json.Marshal(response{
		Success:   true,
		Content:   content,
		URL:       req.URL,
		Format:    format,
		Size:      size,
		Truncated: truncated,
	})
}

func errorPayload(msg string) ([]byte, error) {
	return json.Marshal(response{Success: false, Error: msg})
}

func extractText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	return strings.Join(strings.Fields(doc.Find("body").Text()), " "), nil
}

func extractBody(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	return doc.Find("body").Html()
}

func convertToMarkdown(html string) (string, error) {
	return md.NewConverter("", true, nil).ConvertString(html)
}

var _ core.Tool = (*Tool)(nil)
