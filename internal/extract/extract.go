package extract

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/xxxsen/common/logutil"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"go.uber.org/zap"

	appErr "github.com/opendiscourse/corpusd/internal/pkg/errors"
)

// Text converts raw file content to plain text. PDFs are extracted page by
// page, markdown is reduced to its text content, and anything else is
// decoded as UTF-8 with invalid sequences replaced. Decoding never raises
// for text input; only unparsable PDFs fail.
func Text(ctx context.Context, name string, data []byte) (string, error) {
	switch {
	case isPDF(name, data):
		return pdfText(ctx, data)
	case isMarkdown(name):
		return markdownText(data), nil
	default:
		return strings.ToValidUTF8(string(data), "�"), nil
	}
}

func isPDF(name string, data []byte) bool {
	if strings.EqualFold(filepath.Ext(name), ".pdf") {
		return true
	}
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

func isMarkdown(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".md" || ext == ".markdown"
}

func pdfText(ctx context.Context, data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: open pdf: %v", appErr.ErrDecodeFailure, err)
	}
	var sb strings.Builder
	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			// A single broken page should not sink the document.
			logutil.GetLogger(ctx).Warn("skipping unreadable pdf page",
				zap.Int("page", i),
				zap.Error(err),
			)
			continue
		}
		sb.WriteString(content)
		sb.WriteString("\n")
	}
	logutil.GetLogger(ctx).Debug("pdf extracted",
		zap.Int("pages", total),
		zap.Int("bytes", sb.Len()),
	)
	return sb.String(), nil
}

func markdownText(data []byte) string {
	md := goldmark.New()
	reader := text.NewReader(data)
	doc := md.Parser().Parse(reader)

	var parts []string
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		if txt := nodeText(node, data); txt != "" {
			parts = append(parts, txt)
		}
	}
	return strings.Join(parts, "\n\n")
}

func nodeText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.Text:
			sb.Write(v.Segment.Value(source))
			if v.SoftLineBreak() || v.HardLineBreak() {
				sb.WriteString("\n")
			}
		case *ast.FencedCodeBlock:
			for i := 0; i < v.Lines().Len(); i++ {
				line := v.Lines().At(i)
				sb.Write(line.Value(source))
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
