// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"golang.org/x/net/html/charset"
)

var errNoRootElement = errors.New("no root element")

// xmlOutline is the root element of an XML document and the tags of its
// direct children. Element names are lower-cased; attribute keys are kept
// as written.
type xmlOutline struct {
	root     string
	attrs    map[string]string
	children []string
}

func (o xmlOutline) hasChild(tag string) bool {
	return slices.Contains(o.children, tag)
}

// readXMLOutline streams file up to the end of its root element. Nested
// content below the direct children is skipped without being retained.
func readXMLOutline(file string) (xmlOutline, error) {
	f, err := os.Open(file)
	if err != nil {
		return xmlOutline{}, err
	}
	defer f.Close()

	dec := xml.NewDecoder(f)
	dec.CharsetReader = charset.NewReaderLabel
	var out xmlOutline

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return xmlOutline{}, errNoRootElement
		}
		if err != nil {
			return xmlOutline{}, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			out.root = strings.ToLower(start.Name.Local)
			out.attrs = make(map[string]string, len(start.Attr))
			for _, a := range start.Attr {
				out.attrs[a.Name.Local] = a.Value
			}
			break
		}
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			return xmlOutline{}, fmt.Errorf("read <%s>: %w", out.root, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			out.children = append(out.children, strings.ToLower(t.Name.Local))
			if err := dec.Skip(); err != nil {
				return xmlOutline{}, fmt.Errorf("read <%s>: %w", t.Name.Local, err)
			}
		case xml.EndElement:
			return out, nil
		}
	}
}
