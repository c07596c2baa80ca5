package resource

import "sort"

// Resource kinds the pipeline can provision.
const (
	KindEC2    = "ec2"
	KindS3     = "s3"
	KindRDS    = "rds"
	KindCustom = "custom"
)

// knownKinds enumerates the supported resource kinds.
var knownKinds = map[string]bool{
	KindEC2:    true,
	KindS3:     true,
	KindRDS:    true,
	KindCustom: true,
}

// KnownKind reports whether kind names a supported resource kind.
func KnownKind(kind string) bool { return knownKinds[kind] }

// Kinds returns the supported resource kinds in sorted order.
func Kinds() []string {
	out := make([]string, 0, len(knownKinds))
	for k := range knownKinds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Engine describes a supported database engine: its pinned default version
// and the port its security group rule opens.
type Engine struct {
	Version string
	Port    int
}

// engineCatalog is the allow-list of database engines.
var engineCatalog = map[string]Engine{
	"mysql":        {Version: "8.0", Port: 3306},
	"postgres":     {Version: "13.7", Port: 5432},
	"mariadb":      {Version: "10.6", Port: 3306},
	"oracle-ee":    {Version: "19.0.0.0.ru-2022-01.rur-2022-01.r1", Port: 1521},
	"sqlserver-ex": {Version: "15.00.4153.1.v1", Port: 1433},
}

// engineAliases maps accepted spellings onto catalog names.
var engineAliases = map[string]string{
	"postgresql": "postgres",
	"oracle":     "oracle-ee",
	"sqlserver":  "sqlserver-ex",
}

// NormalizeEngine resolves aliases like postgresql onto catalog engine
// names. Unknown values pass through unchanged so the validator can report
// them.
func NormalizeEngine(engine string) string {
	if canonical, ok := engineAliases[engine]; ok {
		return canonical
	}
	return engine
}

// Engines returns the allow-listed engine names in sorted order.
func Engines() []string {
	out := make([]string, 0, len(engineCatalog))
	for name := range engineCatalog {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// regionAllowList is the set of provider regions requests may target.
var regionAllowList = map[string]bool{
	"ap-south-1":     true,
	"ap-southeast-1": true,
	"ap-southeast-2": true,
	"ap-northeast-1": true,
	"us-east-1":      true,
	"us-east-2":      true,
	"us-west-1":      true,
	"us-west-2":      true,
	"eu-west-1":      true,
	"eu-west-2":      true,
	"eu-central-1":   true,
}

// instanceTypeFamilies and instanceTypeSizes form the EC2 instance type
// allow-list; a type is valid when family and size are both listed.
var instanceTypeFamilies = map[string]bool{
	"t2": true, "t3": true, "t3a": true, "t4g": true,
	"m5": true, "m6i": true, "m7g": true,
	"c5": true, "c6i": true, "c7g": true,
	"r5": true, "r6i": true,
}

var instanceTypeSizes = map[string]bool{
	"nano": true, "micro": true, "small": true, "medium": true,
	"large": true, "xlarge": true, "2xlarge": true, "4xlarge": true,
	"8xlarge": true,
}

// dbClassFamilies is the allow-list for RDS instance class families; the
// size half shares instanceTypeSizes.
var dbClassFamilies = map[string]bool{
	"t3": true, "t4g": true,
	"m5": true, "m6i": true,
	"r5": true, "r6i": true,
}
