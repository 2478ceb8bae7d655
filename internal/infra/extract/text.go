package extract

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/go-enry/go-enry/v2"
	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func (e *Extractor) extractText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return e.decodeText(data)
}

// decodeText は UTF-8 (BOM付きを含む) として読めなければ Windows-874 (タイ語) として復号する
func (e *Extractor) decodeText(data []byte) (string, error) {
	if enry.IsBinary(data) {
		return "", errors.New("file looks like binary content")
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data), nil
	}

	decoded, err := charmap.Windows874.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode windows-874: %w", err)
	}
	e.logger.Info("UTF-8以外のテキストをWindows-874として読み込みました", "bytes", len(data))
	return string(decoded), nil
}
