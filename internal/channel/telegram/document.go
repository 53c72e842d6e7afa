package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/tgifai/macmate/internal/pkg/utils"
)

const (
	maxDocumentSize  = 1 << 20
	maxDocumentChars = 10000
)

var textExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".py":   true,
	".js":   true,
	".json": true,
	".csv":  true,
}

func isTextDocument(name string) bool {
	return textExtensions[strings.ToLower(filepath.Ext(name))]
}

// documentPrompt inlines a text file into the user's message.
func documentPrompt(name, caption, content string) string {
	if utf8.RuneCountInString(content) > maxDocumentChars {
		content = utils.Head(content, maxDocumentChars) + "\n... (truncated)"
	}
	body := fmt.Sprintf("File '%s':\n\n```\n%s\n```", name, content)
	if caption = strings.TrimSpace(caption); caption != "" {
		return caption + "\n\n" + body
	}
	return body
}

// readDocument downloads a text document and returns it as a string.
func (c *Telegram) readDocument(ctx context.Context, doc *models.Document) (string, error) {
	if doc.FileSize > maxDocumentSize {
		return "", fmt.Errorf("file is larger than %d KB", maxDocumentSize>>10)
	}
	file, err := c.bot.GetFile(ctx, &bot.GetFileParams{FileID: doc.FileID})
	if err != nil {
		return "", fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.bot.FileDownloadLink(file), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download file: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
	if err != nil {
		return "", fmt.Errorf("read file body: %w", err)
	}
	if len(data) > maxDocumentSize {
		return "", fmt.Errorf("file is larger than %d KB", maxDocumentSize>>10)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%s is not UTF-8 text", doc.FileName)
	}
	return string(data), nil
}
