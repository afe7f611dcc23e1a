package updater

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

var (
	errMultipleDocuments = errors.New(
		"expected a single YAML document",
	)
	errNotMapping = errors.New(
		"document root is not a mapping",
	)
	errNoContainers = errors.New(
		"no spec.template.spec.containers",
	)
)

var containersPath = []string{
	"spec", "template", "spec", "containers",
}

// decodeManifest parses content as a single YAML
// document into a generic tree.
func decodeManifest(content []byte) (interface{}, error) {
	const errCtx = "decoding manifest"

	decoder := yaml.NewDecoder(bytes.NewReader(content))

	var doc interface{}

	err := decoder.Decode(&doc)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	var extra interface{}

	err = decoder.Decode(&extra)

	switch {
	case errors.Is(err, io.EOF):
		return doc, nil
	case err != nil:
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	default:
		return nil, fmt.Errorf(
			"%s: %w", errCtx, errMultipleDocuments,
		)
	}
}

// locateContainers walks spec.template.spec.containers
// and returns the root mapping together with the
// non-empty containers sequence. Any missing or mistyped
// level yields errNotMapping or errNoContainers.
func locateContainers(
	doc interface{},
) (map[string]interface{}, []interface{}, error) {
	obj, ok := doc.(map[string]interface{})
	if !ok {
		return nil, nil, errNotMapping
	}

	val, found, err := unstructured.NestedFieldNoCopy(
		obj, containersPath...,
	)
	if err != nil || !found {
		return nil, nil, errNoContainers
	}

	containers, ok := val.([]interface{})
	if !ok || len(containers) == 0 {
		return nil, nil, errNoContainers
	}

	return obj, containers, nil
}

// encodeManifest renders obj back to YAML. Mapping keys
// come out sorted. String values another resolver could
// read as a number or boolean are emitted double-quoted.
func encodeManifest(obj map[string]interface{}) ([]byte, error) {
	const errCtx = "encoding manifest"

	buf, err := yaml.Marshal(quoteAmbiguous(obj))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return buf, nil
}

// quotedString is a scalar that always encodes in double
// quotes.
type quotedString string

// MarshalYAML implements yaml.BytesMarshaler.
func (s quotedString) MarshalYAML() ([]byte, error) {
	return []byte(strconv.Quote(string(s))), nil
}

// quoteAmbiguous returns a copy of v in which every
// string that looks like a non-string scalar is replaced
// by a quotedString.
func quoteAmbiguous(v interface{}) interface{} {
	switch node := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(node))
		for key, val := range node {
			out[key] = quoteAmbiguous(val)
		}

		return out
	case []interface{}:
		out := make([]interface{}, len(node))
		for i, val := range node {
			out[i] = quoteAmbiguous(val)
		}

		return out
	case string:
		if looksNonString(node) {
			return quotedString(node)
		}

		return node
	default:
		return v
	}
}

// nonStringWords are plain scalars that YAML 1.1 or 1.2
// resolve to booleans, nulls or special floats.
var nonStringWords = map[string]struct{}{
	"y": {}, "n": {}, "yes": {}, "no": {}, "on": {}, "off": {},
	"true": {}, "false": {}, "null": {}, "~": {},
	".inf": {}, "+.inf": {}, "-.inf": {}, ".nan": {},
}

// looksNonString reports whether s, written as a plain
// scalar, could be resolved as something other than a
// string.
func looksNonString(s string) bool {
	if s == "" {
		return false
	}

	if _, ok := nonStringWords[strings.ToLower(s)]; ok {
		return true
	}

	if _, err := strconv.ParseInt(s, 0, 64); isNumberSyntax(err) {
		return true
	}

	_, err := strconv.ParseFloat(strings.ReplaceAll(s, "_", ""), 64)

	return isNumberSyntax(err)
}

// isNumberSyntax is true when a strconv parse succeeded
// or only overflowed.
func isNumberSyntax(err error) bool {
	return err == nil || errors.Is(err, strconv.ErrRange)
}
