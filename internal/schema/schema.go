// Package schema declares how each column of a review record is read from a review container.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"ReviewScraper/internal/models"
	"ReviewScraper/pkg/config"
	"ReviewScraper/utils"
)

// FieldID names one column of a review record.
type FieldID int

const (
	FieldTitle FieldID = iota
	FieldText
	FieldDate
	FieldName
	fieldCount
)

var fieldNames = [fieldCount]string{"title", "text", "date", "name"}

func (f FieldID) String() string {
	if f < 0 || f >= fieldCount {
		return fmt.Sprintf("field(%d)", int(f))
	}
	return fieldNames[f]
}

// Fields lists every field in output column order.
func Fields() []FieldID {
	return []FieldID{FieldTitle, FieldText, FieldDate, FieldName}
}

// ValueSeparator joins the texts of several nodes matched by one field selector.
const ValueSeparator = ", "

// ErrFieldNotFound is matched by every FieldNotFoundError.
var ErrFieldNotFound = errors.New("field not found")

// FieldNotFoundError reports a field selector that matched nothing inside a container.
type FieldNotFoundError struct {
	Field    FieldID
	Selector string
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("field %q not found (selector %q)", e.Field, e.Selector)
}

func (e *FieldNotFoundError) Is(target error) bool {
	return target == ErrFieldNotFound
}

// FieldSpec pairs a field with the selector that locates it inside a review container.
type FieldSpec struct {
	Field    FieldID
	Selector string
}

type compiledField struct {
	spec    FieldSpec
	matcher cascadia.Selector
}

// Schema is a validated, read-only set of FieldSpecs covering every field exactly once.
type Schema struct {
	fields [fieldCount]compiledField
}

// New validates specs and compiles their selectors. Every field must appear exactly once.
func New(specs ...FieldSpec) (*Schema, error) {
	var s Schema
	var seen [fieldCount]bool
	for _, spec := range specs {
		if spec.Field < 0 || spec.Field >= fieldCount {
			return nil, fmt.Errorf("unknown field %d", int(spec.Field))
		}
		if seen[spec.Field] {
			return nil, fmt.Errorf("field %q declared twice", spec.Field)
		}
		if strings.TrimSpace(spec.Selector) == "" {
			return nil, fmt.Errorf("field %q has an empty selector", spec.Field)
		}
		m, err := cascadia.Compile(spec.Selector)
		if err != nil {
			return nil, fmt.Errorf("compile selector for field %q: %w", spec.Field, err)
		}
		seen[spec.Field] = true
		s.fields[spec.Field] = compiledField{spec: spec, matcher: m}
	}
	for _, f := range Fields() {
		if !seen[f] {
			return nil, fmt.Errorf("field %q has no selector", f)
		}
	}
	return &s, nil
}

// FromConfig builds a Schema from the configured field selectors.
func FromConfig(fs config.FieldSelectors) (*Schema, error) {
	return New(
		FieldSpec{Field: FieldTitle, Selector: fs.Title},
		FieldSpec{Field: FieldText, Selector: fs.Text},
		FieldSpec{Field: FieldDate, Selector: fs.Date},
		FieldSpec{Field: FieldName, Selector: fs.Name},
	)
}

// Specs returns the field specs in column order.
func (s *Schema) Specs() []FieldSpec {
	specs := make([]FieldSpec, 0, fieldCount)
	for _, f := range s.fields {
		specs = append(specs, f.spec)
	}
	return specs
}

// ExtractValue reads one field from container. Every descendant matching the field's selector
// contributes its whitespace-collapsed text; the texts are joined with ValueSeparator.
// It fails with a FieldNotFoundError when the selector matches no descendant.
func (s *Schema) ExtractValue(container *goquery.Selection, spec FieldSpec) (string, error) {
	if spec.Field < 0 || spec.Field >= fieldCount {
		return "", fmt.Errorf("unknown field %d", int(spec.Field))
	}
	cf := s.fields[spec.Field]
	matcher := cf.matcher
	if spec.Selector != cf.spec.Selector {
		m, err := cascadia.Compile(spec.Selector)
		if err != nil {
			return "", fmt.Errorf("compile selector for field %q: %w", spec.Field, err)
		}
		matcher = m
	}

	matches := container.FindMatcher(matcher)
	if matches.Length() == 0 {
		return "", &FieldNotFoundError{Field: spec.Field, Selector: spec.Selector}
	}

	texts := make([]string, 0, matches.Length())
	for _, n := range matches.Nodes {
		texts = append(texts, nodeText(n))
	}
	return strings.Join(texts, ValueSeparator), nil
}

// blockElements start on a new line when rendered. Their boundaries, and <br>, become a space
// so neighbouring paragraphs do not run together; inline elements add nothing.
var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "br": true, "dd": true,
	"div": true, "dl": true, "dt": true, "figcaption": true, "figure": true, "footer": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "header": true,
	"hr": true, "li": true, "ol": true, "p": true, "pre": true, "section": true, "table": true,
	"td": true, "th": true, "tr": true, "ul": true,
}

// nodeText concatenates the text nodes under n and collapses whitespace.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if blockElements[n.Data] {
				b.WriteByte(' ')
				defer b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return utils.CleanText(b.String())
}

// Extract builds the review record for container. The first missing field aborts the record.
func (s *Schema) Extract(container *goquery.Selection) (models.Review, error) {
	var values [fieldCount]string
	for _, f := range s.fields {
		v, err := s.ExtractValue(container, f.spec)
		if err != nil {
			return models.Review{}, err
		}
		values[f.spec.Field] = v
	}
	return models.Review{
		Title: values[FieldTitle],
		Text:  values[FieldText],
		Date:  values[FieldDate],
		Name:  values[FieldName],
	}, nil
}
