package extract

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const documentXMLPath = "word/document.xml"

func (e *Extractor) extractDOCX(path string) (string, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		if file.Name != documentXMLPath {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("open %s: %w", documentXMLPath, err)
		}
		defer rc.Close()
		return parseDocumentXML(rc)
	}
	return "", errors.New("word/document.xml not found")
}

// parseDocumentXML は本文の段落を1行ずつ、表の行をセルを " | " で連結した1行として取り出す
func parseDocumentXML(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)

	var (
		out        strings.Builder
		para       strings.Builder
		cell       strings.Builder
		row        []string
		tableDepth int
		inText     bool
	)

	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tableDepth++
			case "tr":
				row = row[:0]
			case "t":
				inText = true
			case "tab":
				para.WriteString("\t")
			case "br":
				para.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				text := strings.TrimSpace(para.String())
				para.Reset()
				if text == "" {
					continue
				}
				if tableDepth > 0 {
					if cell.Len() > 0 {
						cell.WriteString(" ")
					}
					cell.WriteString(text)
					continue
				}
				out.WriteString(text)
				out.WriteString("\n")
			case "tc":
				if text := strings.TrimSpace(cell.String()); text != "" {
					row = append(row, text)
				}
				cell.Reset()
			case "tr":
				if len(row) > 0 {
					out.WriteString(strings.Join(row, " | "))
					out.WriteString("\n")
				}
			case "tbl":
				tableDepth--
			}
		}
	}

	return out.String(), nil
}
