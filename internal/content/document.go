package content

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// ErrMalformedDocument is returned when an upload is not a well-formed items document.
var ErrMalformedDocument = errors.New("malformed import document")

// Document is the XML batch format accepted by Import:
//
//	<items>
//	  <item path="/sites/www/index.html" name="Home" type="page">
//	    <fields><field name="title" value="Welcome"/></fields>
//	  </item>
//	</items>
type Document struct {
	XMLName xml.Name       `xml:"items"`
	Items   []DocumentItem `xml:"item"`
}

type DocumentItem struct {
	Path   string          `xml:"path,attr"`
	Name   string          `xml:"name,attr"`
	Type   string          `xml:"type,attr"`
	Fields []DocumentField `xml:"fields>field"`
}

type DocumentField struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// ParseDocument decodes an items document. A document with no items is an error.
func ParseDocument(r io.Reader) (*Document, error) {
	var doc Document
	dec := xml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrMalformedDocument)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if len(doc.Items) == 0 {
		return nil, fmt.Errorf("%w: no <item> elements", ErrMalformedDocument)
	}
	return &doc, nil
}

// fieldMap flattens fields; later duplicates win.
func (it DocumentItem) fieldMap() map[string]string {
	fields := make(map[string]string, len(it.Fields))
	for _, f := range it.Fields {
		if f.Name == "" {
			continue
		}
		fields[f.Name] = f.Value
	}
	return fields
}
