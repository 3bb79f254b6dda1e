// Package fingerprint identifies the GraphQL server implementation behind an
// endpoint from response headers and introspected schema traits.
package fingerprint

import (
	_ "embed"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed signatures.yaml
var signaturesYAML []byte

const (
	headerWeight    = 3
	directiveWeight = 2
)

// Report is the fingerprint result for one endpoint.
type Report struct {
	Engine        string         `json:"engine"`
	Confidence    int            `json:"confidence"`
	SecurityNotes []string       `json:"security_notes"`
	Signals       map[string]int `json:"signals"`
}

type signatureFile struct {
	Engines      []engineSignature `yaml:"engines"`
	UnknownNotes []string          `yaml:"unknown_notes"`
}

type engineSignature struct {
	Name           string             `yaml:"name"`
	HeaderKeywords []string           `yaml:"header_keywords"`
	Directives     []string           `yaml:"directives"`
	TypeNames      []weightedName     `yaml:"type_names"`
	TypeSubstrings []weightedSubmatch `yaml:"type_substrings"`
	SecurityNotes  []string           `yaml:"security_notes"`
}

type weightedName struct {
	Name   string `yaml:"name"`
	Weight int    `yaml:"weight"`
}

type weightedSubmatch struct {
	Substring string `yaml:"substring"`
	Weight    int    `yaml:"weight"`
}

// Detector scores engine signatures against observed endpoint traits.
type Detector struct {
	signatures   []engineSignature
	unknownNotes []string
}

// NewDetector loads the embedded signature set.
func NewDetector() (*Detector, error) {
	var file signatureFile
	if err := yaml.Unmarshal(signaturesYAML, &file); err != nil {
		return nil, fmt.Errorf("parse engine signatures: %w", err)
	}
	if len(file.Engines) == 0 {
		return nil, fmt.Errorf("engine signature set is empty")
	}
	return &Detector{
		signatures:   file.Engines,
		unknownNotes: file.UnknownNotes,
	}, nil
}

// Detect scores every known engine against the response headers and schema
// document and returns the best match. A zero total means Unknown.
func (d *Detector) Detect(document map[string]interface{}, respHeaders http.Header) Report {
	headerBlob := headerBlob(respHeaders)
	directives := schemaDirectives(document)
	typeNames, typeBlob := schemaTypeNames(document)

	scored := make(map[string]int, len(d.signatures))
	for _, sig := range d.signatures {
		score := 0

		for _, kw := range sig.HeaderKeywords {
			if strings.Contains(headerBlob, kw) {
				score += headerWeight
				break
			}
		}

		for _, dir := range sig.Directives {
			if directives[strings.ToLower(dir)] {
				score += directiveWeight
				break
			}
		}

		for _, tn := range sig.TypeNames {
			if typeNames[strings.ToLower(tn.Name)] {
				score += tn.Weight
			}
		}

		for _, ts := range sig.TypeSubstrings {
			if strings.Contains(typeBlob, strings.ToLower(ts.Substring)) {
				score += ts.Weight
			}
		}

		scored[sig.Name] = score
	}

	best := d.signatures[0]
	for _, sig := range d.signatures[1:] {
		if scored[sig.Name] > scored[best.Name] {
			best = sig
		}
	}

	report := Report{
		Engine:        best.Name,
		Confidence:    scored[best.Name],
		SecurityNotes: best.SecurityNotes,
		Signals:       scored,
	}
	if report.Confidence == 0 {
		report.Engine = "Unknown"
		report.SecurityNotes = d.unknownNotes
	}
	return report
}

// Banner renders the fingerprint as the one-line-per-signal text block the
// graphw00f view displays.
func (d *Detector) Banner(target string, report Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[*] Fingerprinting GraphQL engine at %s\n", target)

	names := make([]string, 0, len(report.Signals))
	for name := range report.Signals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "[-] %-16s score %d\n", name, report.Signals[name])
	}

	if report.Engine == "Unknown" {
		b.WriteString("[!] No engine signature matched; target is reported as Unknown\n")
	} else {
		fmt.Fprintf(&b, "[+] Discovered GraphQL engine: %s (confidence %d)\n", report.Engine, report.Confidence)
	}
	return b.String()
}

func headerBlob(h http.Header) string {
	parts := make([]string, 0, len(h))
	for k, vs := range h {
		for _, v := range vs {
			parts = append(parts, strings.ToLower(k)+":"+strings.ToLower(v))
		}
	}
	return strings.Join(parts, " ")
}

func schemaDirectives(document map[string]interface{}) map[string]bool {
	out := map[string]bool{}
	schemaDoc, _ := document["__schema"].(map[string]interface{})
	directives, _ := schemaDoc["directives"].([]interface{})
	for _, d := range directives {
		if m, ok := d.(map[string]interface{}); ok {
			if name, ok := m["name"].(string); ok {
				out[strings.ToLower(name)] = true
			}
		}
	}
	return out
}

func schemaTypeNames(document map[string]interface{}) (map[string]bool, string) {
	names := map[string]bool{}
	var blob []string

	schemaDoc, _ := document["__schema"].(map[string]interface{})
	types, _ := schemaDoc["types"].([]interface{})
	for _, t := range types {
		if m, ok := t.(map[string]interface{}); ok {
			if name, ok := m["name"].(string); ok && name != "" {
				lower := strings.ToLower(name)
				names[lower] = true
				blob = append(blob, lower)
			}
		}
	}
	return names, strings.Join(blob, " ")
}
