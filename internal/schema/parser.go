package schema

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/kyleking/schema-rag/internal/errors"
)

var (
	htmlTagPattern   = regexp.MustCompile(`</?[a-zA-Z][a-zA-Z0-9]*(\s[^<>]*)?/?>`)
	tableNamePattern = regexp.MustCompile(`"table_name"\s*:\s*"((?:[^"\\]|\\.)*)"`)
)

// Parse decodes schema file content into a Record.
// Malformed content returns an ErrTypeSchemaFormat error.
func Parse(content []byte) (*Record, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(content, &fields); err != nil || fields == nil {
		return nil, errors.NewSchemaFormatError("", "content is not a JSON object")
	}

	record := &Record{}

	name, err := requiredString(fields, "table_name")
	if err != nil {
		return nil, err
	}

	record.TableName = name

	if record.Description, err = optionalText(fields, "description"); err != nil {
		return nil, err
	}

	if record.BusinessContext, err = optionalText(fields, "business_context"); err != nil {
		return nil, err
	}

	if record.Columns, err = parseColumns(fields["columns"]); err != nil {
		return nil, err
	}

	if record.Relationships, err = parseRelationships(fields["relationships"]); err != nil {
		return nil, err
	}

	record.Indexes = lenientStrings(fields["indexes"])
	record.ExampleQueries = lenientStrings(fields["example_queries"])

	return record, nil
}

// PeekTableName extracts table_name without validating the rest of the file.
// It also works on truncated or otherwise invalid JSON. Returns "" when no
// name can be found.
func PeekTableName(content []byte) string {
	var probe struct {
		TableName json.RawMessage `json:"table_name"`
	}

	if err := json.Unmarshal(content, &probe); err == nil {
		var name string
		if json.Unmarshal(probe.TableName, &name) == nil {
			return strings.TrimSpace(name)
		}

		return ""
	}

	match := tableNamePattern.FindSubmatch(content)
	if match == nil {
		return ""
	}

	var name string
	if err := json.Unmarshal(append(append([]byte{'"'}, match[1]...), '"'), &name); err != nil {
		return ""
	}

	return strings.TrimSpace(name)
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func requiredString(fields map[string]json.RawMessage, key string) (string, error) {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return "", errors.NewSchemaFormatError("", "%s is required", key)
	}

	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", errors.NewSchemaFormatError("", "%s must be a string", key)
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return "", errors.NewSchemaFormatError("", "%s must not be empty", key)
	}

	return value, nil
}

func optionalText(fields map[string]json.RawMessage, key string) (string, error) {
	raw, ok := fields[key]
	if !ok || isNull(raw) {
		return "", nil
	}

	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", errors.NewSchemaFormatError("", "%s must be a string", key)
	}

	return normalizeText(value), nil
}

// normalizeText trims s and converts catalog HTML into Markdown
func normalizeText(s string) string {
	s = strings.TrimSpace(s)
	if !htmlTagPattern.MatchString(s) {
		return s
	}

	converted, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return s
	}

	return strings.TrimSpace(converted)
}

type columnFields struct {
	Name        *string         `json:"name"`
	Type        *string         `json:"type"`
	Constraints json.RawMessage `json:"constraints"`
	Description *string         `json:"description"`
}

func parseColumns(raw json.RawMessage) ([]Column, error) {
	if isNull(raw) {
		return nil, nil
	}

	switch bytes.TrimSpace(raw)[0] {
	case '{':
		return parseColumnMapping(raw)
	case '[':
		return parseColumnList(raw)
	default:
		return nil, errors.NewSchemaFormatError("", "columns must be an object or a list of column objects")
	}
}

// parseColumnMapping walks the object with a token decoder so columns keep
// the order they have in the file.
func parseColumnMapping(raw json.RawMessage) ([]Column, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	if _, err := dec.Token(); err != nil {
		return nil, errors.NewSchemaFormatError("", "columns must be an object or a list of column objects")
	}

	var columns []Column

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, errors.NewSchemaFormatError("", "columns object is malformed")
		}

		name, _ := tok.(string)

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, errors.NewSchemaFormatError("", "column %q is malformed", name)
		}

		trimmed := bytes.TrimSpace(value)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			return nil, errors.NewSchemaFormatError("", "column %q must be an object", name)
		}

		var cf columnFields
		if err := json.Unmarshal(value, &cf); err != nil {
			return nil, errors.NewSchemaFormatError("", "column %q: name, type and description must be strings", name)
		}

		column, err := buildColumn(strings.TrimSpace(name), cf)
		if err != nil {
			return nil, err
		}

		columns = append(columns, column)
	}

	return columns, nil
}

func parseColumnList(raw json.RawMessage) ([]Column, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, errors.NewSchemaFormatError("", "columns list is malformed")
	}

	columns := make([]Column, 0, len(items))

	for i, item := range items {
		trimmed := bytes.TrimSpace(item)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			return nil, errors.NewSchemaFormatError("", "column %d must be an object", i)
		}

		var cf columnFields
		if err := json.Unmarshal(item, &cf); err != nil {
			return nil, errors.NewSchemaFormatError("", "column %d: name, type and description must be strings", i)
		}

		if cf.Name == nil || strings.TrimSpace(*cf.Name) == "" {
			return nil, errors.NewSchemaFormatError("", "column %d lacks %q", i, "name")
		}

		column, err := buildColumn(strings.TrimSpace(*cf.Name), cf)
		if err != nil {
			return nil, err
		}

		columns = append(columns, column)
	}

	return columns, nil
}

func buildColumn(name string, cf columnFields) (Column, error) {
	if name == "" {
		return Column{}, errors.NewSchemaFormatError("", "column name must not be empty")
	}

	if cf.Type == nil || strings.TrimSpace(*cf.Type) == "" {
		return Column{}, errors.NewSchemaFormatError("", "column %q lacks %q", name, "type")
	}

	constraints, err := parseConstraints(name, cf.Constraints)
	if err != nil {
		return Column{}, err
	}

	column := Column{
		Name:        name,
		Type:        strings.TrimSpace(*cf.Type),
		Constraints: constraints,
	}

	if cf.Description != nil {
		column.Description = normalizeText(*cf.Description)
	}

	return column, nil
}

// parseConstraints accepts a single phrase or a list of phrases
func parseConstraints(column string, raw json.RawMessage) ([]string, error) {
	if isNull(raw) {
		return nil, nil
	}

	var phrase string
	if err := json.Unmarshal(raw, &phrase); err == nil {
		phrase = strings.TrimSpace(phrase)
		if phrase == "" {
			return nil, nil
		}

		return []string{phrase}, nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, errors.NewSchemaFormatError("", "column %q: constraints must be a string or a list of strings", column)
	}

	constraints := make([]string, 0, len(list))

	for _, c := range list {
		if c = strings.TrimSpace(c); c != "" {
			constraints = append(constraints, c)
		}
	}

	return constraints, nil
}

type relationshipFields struct {
	Type         string `json:"type"`
	RelatedTable string `json:"related_table"`
	ForeignKey   string `json:"foreign_key"`
	Description  string `json:"description"`
}

func parseRelationships(raw json.RawMessage) ([]Relationship, error) {
	if isNull(raw) {
		return nil, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, errors.NewSchemaFormatError("", "relationships must be a list")
	}

	relationships := make([]Relationship, 0, len(items))

	for i, item := range items {
		trimmed := bytes.TrimSpace(item)
		if len(trimmed) == 0 {
			continue
		}

		switch trimmed[0] {
		case '"':
			var text string
			if err := json.Unmarshal(item, &text); err != nil {
				return nil, errors.NewSchemaFormatError("", "relationship %d is malformed", i)
			}

			relationships = append(relationships, Relationship{Kind: RelationshipFreeText, Text: strings.TrimSpace(text)})
		case '{':
			var rf relationshipFields
			if err := json.Unmarshal(item, &rf); err != nil {
				return nil, errors.NewSchemaFormatError("", "relationship %d: fields must be strings", i)
			}

			relationships = append(relationships, Relationship{
				Kind:         RelationshipStructured,
				Type:         strings.TrimSpace(rf.Type),
				RelatedTable: strings.TrimSpace(rf.RelatedTable),
				ForeignKey:   strings.TrimSpace(rf.ForeignKey),
				Description:  normalizeText(rf.Description),
			})
		default:
			return nil, errors.NewSchemaFormatError("", "relationship %d must be an object or a string", i)
		}
	}

	return relationships, nil
}

// lenientStrings keeps the string elements of a list and ignores anything else
func lenientStrings(raw json.RawMessage) []string {
	if isNull(raw) {
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}

	var out []string

	for _, item := range items {
		var s string
		if json.Unmarshal(item, &s) == nil {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}

	return out
}

// String implements fmt.Stringer for debugging output
func (r Relationship) String() string {
	return renderRelationship(r)
}
