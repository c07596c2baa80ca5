package state

import (
	"fmt"

	"github.com/itchyny/gojq"

	"github.com/GoCodeAlone/provision/resource"
	"github.com/GoCodeAlone/provision/terraform"
)

// primaryTypes maps each kind to the provider type that anchors its records.
// Custom workspaces track every managed resource instead.
var primaryTypes = map[string]string{
	resource.KindEC2: "aws_instance",
	resource.KindS3:  "aws_s3_bucket",
	resource.KindRDS: "aws_db_instance",
}

// Attribute queries over the decoded resource values, one per provider type
// worth summarizing. Null fields are dropped, everything else is stringified.
var attributeQueries = map[string]string{
	"aws_instance":    `{instance_type, availability_zone, public_ip, private_ip} | with_entries(select(.value != null)) | map_values(tostring)`,
	"aws_s3_bucket":   `{bucket, arn, region} | with_entries(select(.value != null)) | map_values(tostring)`,
	"aws_db_instance": `{engine, engine_version, endpoint, port} | with_entries(select(.value != null)) | map_values(tostring)`,
	"aws_vpc":         `{cidr_block} | with_entries(select(.value != null)) | map_values(tostring)`,
	"aws_subnet":      `{cidr_block, availability_zone} | with_entries(select(.value != null)) | map_values(tostring)`,
}

// tagsQuery pulls the provider tags off any resource that carries them.
const tagsQuery = `.tags // {} | map_values(tostring)`

// Extractor turns decoded terraform state into resource records.
type Extractor struct {
	queries map[string]*gojq.Code
	tags    *gojq.Code
}

// NewExtractor compiles the per-type attribute queries.
func NewExtractor() (*Extractor, error) {
	queries := make(map[string]*gojq.Code, len(attributeQueries))
	for typ, src := range attributeQueries {
		code, err := compileQuery(src)
		if err != nil {
			return nil, fmt.Errorf("attribute query for %s: %w", typ, err)
		}
		queries[typ] = code
	}
	tags, err := compileQuery(tagsQuery)
	if err != nil {
		return nil, fmt.Errorf("tags query: %w", err)
	}
	return &Extractor{queries: queries, tags: tags}, nil
}

func compileQuery(src string) (*gojq.Code, error) {
	query, err := gojq.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	return code, nil
}

// Extract returns a record for every tracked resource of kind in st. For the
// custom kind all managed resources are tracked; for the others only the
// kind's primary provider type is.
func (e *Extractor) Extract(kind string, st *terraform.State) []ResourceRecord {
	primary := primaryTypes[kind]
	var out []ResourceRecord
	for _, res := range st.AllResources() {
		if kind != resource.KindCustom && res.Type != primary {
			continue
		}
		id := res.ID()
		if id == "" {
			continue
		}
		out = append(out, ResourceRecord{
			ID:         id,
			Kind:       kind,
			Name:       res.Name,
			Tags:       runQuery(e.tags, res.Values),
			Status:     StatusActive,
			Attributes: e.attributes(res),
		})
	}
	return out
}

func (e *Extractor) attributes(res terraform.StateResource) map[string]string {
	code, ok := e.queries[res.Type]
	if !ok {
		return nil
	}
	return runQuery(code, res.Values)
}

// runQuery evaluates code against the decoded values and returns the
// resulting object as a string map. Nil on no result or an empty one.
func runQuery(code *gojq.Code, values map[string]any) map[string]string {
	if values == nil {
		return nil
	}
	iter := code.Run(values)
	v, ok := iter.Next()
	if !ok {
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		if s, ok := val.(string); ok {
			out[k] = s
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
