// Package render turns validated resource specifications into Terraform
// configurations. Rendering is pure: the same spec always produces the same
// bytes, and nothing in this package touches the filesystem.
package render

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"unicode"

	"github.com/GoCodeAlone/provision/resource"
)

// ConfigFileName is the workspace-relative path every configuration is
// written to. A new request for the same workspace overwrites it.
const ConfigFileName = "main.tf"

// GeneratedConfig describes one rendered Terraform configuration.
type GeneratedConfig struct {
	// TargetPath is the file path relative to the workspace root.
	TargetPath string `json:"target_path"`
	// Content is the full configuration text.
	Content string `json:"content"`
	// Kind is the resource kind the configuration provisions.
	Kind string `json:"kind"`
	// Fingerprint identifies the spec the configuration was rendered from.
	Fingerprint string `json:"fingerprint"`
}

// Renderer renders Terraform configurations from typed specs.
type Renderer struct {
	templates *template.Template
}

// NewRenderer parses the per-kind templates. Malformed template text is a
// programming error and panics.
func NewRenderer() *Renderer {
	root := template.New("terraform").Funcs(template.FuncMap{
		"tags":    tagBlock,
		"hclList": hclList,
	})
	for kind, body := range map[string]string{
		resource.KindEC2:    ec2Template,
		resource.KindS3:     s3Template,
		resource.KindRDS:    rdsTemplate,
		resource.KindCustom: customTemplate,
	} {
		template.Must(root.New(kind).Parse(body))
	}
	return &Renderer{templates: root}
}

// Generate renders the configuration for spec. Identical specs yield
// byte-identical content and equal fingerprints.
func (r *Renderer) Generate(spec resource.Spec) (GeneratedConfig, error) {
	data, err := templateData(spec)
	if err != nil {
		return GeneratedConfig{}, err
	}
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, spec.Kind(), data); err != nil {
		return GeneratedConfig{}, fmt.Errorf("failed to render %s configuration: %w", spec.Kind(), err)
	}
	return GeneratedConfig{
		TargetPath:  ConfigFileName,
		Content:     buf.String(),
		Kind:        spec.Kind(),
		Fingerprint: spec.Fingerprint(),
	}, nil
}

type ec2Data struct {
	Region        string
	InstanceLabel string
	InstanceName  string
	AMI           string
	InstanceType  string
	SSHCIDRs      []string
	Tags          map[string]string
}

type s3Data struct {
	Region            string
	Label             string
	BucketName        string
	VersioningStatus  string
	EncryptionEnabled bool
	Tags              map[string]string
}

type rdsData struct {
	Region         string
	Label          string
	DatabaseName   string
	DBName         string
	Engine         string
	EngineUpper    string
	EngineVersion  string
	InstanceClass  string
	MasterUsername string
	MasterPassword string
	Port           int
	Tags           map[string]string
}

type customData struct {
	Region       string
	RequestLines []string
}

func templateData(spec resource.Spec) (any, error) {
	switch s := spec.(type) {
	case resource.EC2Spec:
		return ec2Data{
			Region:        s.Region,
			InstanceLabel: hclLabel(s.InstanceName),
			InstanceName:  s.InstanceName,
			AMI:           s.AMI,
			InstanceType:  s.InstanceType,
			SSHCIDRs:      s.AllowedSSHCIDRs,
			Tags:          s.Tags,
		}, nil
	case resource.S3Spec:
		status := "Disabled"
		if s.VersioningEnabled {
			status = "Enabled"
		}
		return s3Data{
			Region:            s.Region,
			Label:             hclLabel(strings.ReplaceAll(s.BucketName, "-", "_")),
			BucketName:        s.BucketName,
			VersioningStatus:  status,
			EncryptionEnabled: s.EncryptionEnabled,
			Tags:              s.Tags,
		}, nil
	case resource.RDSSpec:
		return rdsData{
			Region:         s.Region,
			Label:          hclLabel(s.DatabaseName),
			DatabaseName:   s.DatabaseName,
			DBName:         strings.ReplaceAll(s.DatabaseName, "-", "_"),
			Engine:         s.Engine,
			EngineUpper:    strings.ToUpper(s.Engine),
			EngineVersion:  s.EngineVersion,
			InstanceClass:  s.InstanceClass,
			MasterUsername: s.MasterUsername,
			MasterPassword: s.MasterPassword,
			Port:           s.Port,
			Tags:           s.Tags,
		}, nil
	case resource.CustomSpec:
		return customData{
			Region:       s.Region,
			RequestLines: strings.Split(strings.TrimSpace(s.Request), "\n"),
		}, nil
	default:
		return nil, fmt.Errorf("no template for spec type %T", spec)
	}
}

// tagBlock renders a tags block with Name first and the remaining keys in
// sorted order, so the bytes never depend on map iteration.
func tagBlock(name string, maps ...map[string]string) string {
	var b strings.Builder
	b.WriteString("tags = {\n")
	fmt.Fprintf(&b, "    Name = %q", name)
	for _, m := range maps {
		keys := make([]string, 0, len(m))
		for k := range m {
			if k != "Name" {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "\n    %s = %q", k, m[k])
		}
	}
	b.WriteString("\n  }")
	return b.String()
}

func hclList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = strconv.Quote(item)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// hclLabel makes name usable as a block label: runes outside letters,
// digits, underscores, and hyphens become underscores, and a leading digit
// gets an underscore prefix.
func hclLabel(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case unicode.IsLetter(r) || r == '_':
			b.WriteRune(r)
		case unicode.IsDigit(r):
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		case r == '-' && i > 0:
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
