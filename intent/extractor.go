package intent

import (
	"regexp"
	"strings"
)

// captureFunc post-processes a regexp match into a slot value. Returning
// false discards the match and lets later rules for the same slot try.
type captureFunc func(match []string) (string, bool)

// actionRule maps a verb pattern to an action. Rules are evaluated in order;
// the first match wins. Rules with needsRealKind set only fire when an
// ec2/s3/rds keyword was found, which keeps "create terraform code" out of
// the create path.
type actionRule struct {
	action        Action
	re            *regexp.Regexp
	needsRealKind bool
}

// kindRule locates a resource-kind keyword in the text.
type kindRule struct {
	kind string
	re   *regexp.Regexp
}

// slotRule fills one slot from a pattern. Rules are evaluated in order and
// the first rule that fills a slot wins; later rules for the same slot are
// skipped. A nil kinds set applies the rule to every resource kind.
type slotRule struct {
	slot    string
	kinds   map[string]bool
	re      *regexp.Regexp
	capture captureFunc
}

var actionRules = []actionRule{
	{action: ActionCreate, re: regexp.MustCompile(`\b(?:create|launch|start|make|setup|provision)\b`), needsRealKind: true},
	{action: ActionDelete, re: regexp.MustCompile(`\b(?:delete|destroy|remove|terminate)\b`)},
	{action: ActionQuery, re: regexp.MustCompile(`\b(?:state|status|info)\b`)},
	{action: ActionGenerate, re: regexp.MustCompile(`\b(?:generate|create|show|preview)\b.*\bcode\b`)},
	{action: ActionGenerate, re: regexp.MustCompile(`\bgenerate\b`)},
	{action: ActionCreate, re: regexp.MustCompile(`\b(?:deploy|build|setup|apply)\b`)},
}

// kindRules are scanned over the whole text; when several kinds appear the
// one at the lowest character offset wins. This is the documented tie-break
// for ambiguous input like "create ec2 and s3". Custom is not positional:
// it is the fallback when no concrete kind keyword appears but the text
// still reads as a template or terraform request.
var kindRules = []kindRule{
	{kind: KindEC2, re: regexp.MustCompile(`\bec2\b`)},
	{kind: KindS3, re: regexp.MustCompile(`\bs3\b`)},
	{kind: KindRDS, re: regexp.MustCompile(`\brds\b`)},
}

var customKindRe = regexp.MustCompile(`\b(?:custom|template|terraform)\b`)

// instanceFamilies and instanceSizes form the fixed vocabulary for
// instance-type-like tokens. A token such as "t2.micro" is only accepted
// when both halves are known, so arbitrary dotted words never become
// instance types.
var instanceFamilies = map[string]bool{
	"t2": true, "t3": true, "t3a": true, "t4g": true,
	"m5": true, "m6i": true, "m7g": true,
	"c5": true, "c6i": true, "c7g": true,
	"r5": true, "r6i": true,
}

var instanceSizes = map[string]bool{
	"nano": true, "micro": true, "small": true, "medium": true,
	"large": true, "xlarge": true, "2xlarge": true, "4xlarge": true,
	"8xlarge": true,
}

// nameStopwords are connective words that must never be mistaken for a
// bucket or database name.
var nameStopwords = map[string]bool{
	"with": true, "and": true, "in": true, "for": true, "named": true,
	"name": true, "called": true, "versioning": true, "enabled": true,
	"encryption": true, "instance": true, "database": true, "bucket": true,
	"mysql": true, "postgres": true, "postgresql": true, "mariadb": true,
	"oracle": true, "sqlserver": true,
}

var engineAliases = map[string]string{
	"mysql":        "mysql",
	"postgres":     "postgres",
	"postgresql":   "postgres",
	"mariadb":      "mariadb",
	"oracle":       "oracle-ee",
	"oracle-ee":    "oracle-ee",
	"sqlserver":    "sqlserver-ex",
	"sqlserver-ex": "sqlserver-ex",
}

var environmentAliases = map[string]string{
	"dev":         "development",
	"development": "development",
	"stage":       "staging",
	"staging":     "staging",
	"test":        "test",
	"prod":        "production",
	"production":  "production",
}

func firstGroup(match []string) (string, bool) {
	return match[1], true
}

func constant(v string) captureFunc {
	return func([]string) (string, bool) { return v, true }
}

func ec2Only() map[string]bool { return map[string]bool{KindEC2: true} }
func s3Only() map[string]bool  { return map[string]bool{KindS3: true} }
func rdsOnly() map[string]bool { return map[string]bool{KindRDS: true} }

var slotRules = []slotRule{
	{slot: SlotVersioning, kinds: s3Only(), re: regexp.MustCompile(`\b(?:no|without|disabled?)\s+versioning\b`), capture: constant("false")},
	{slot: SlotVersioning, kinds: s3Only(), re: regexp.MustCompile(`\bversion(?:ing|ed)\b`), capture: constant("true")},
	{slot: SlotInstanceType, kinds: ec2Only(), re: regexp.MustCompile(`\b([a-z][0-9][a-z0-9]*\.[a-z0-9]+)\b`), capture: captureInstanceType},
	{slot: SlotInstanceClass, kinds: rdsOnly(), re: regexp.MustCompile(`\b(db\.[a-z][a-z0-9]*\.[a-z0-9]+)\b`)},
	{slot: SlotEngine, kinds: rdsOnly(), re: regexp.MustCompile(`\b(mysql|postgresql|postgres|mariadb|oracle-ee|oracle|sqlserver-ex|sqlserver)\b`), capture: captureEngine},
	{slot: SlotRegion, re: regexp.MustCompile(`\b((?:us|eu|ap)-[a-z]+-[0-9])\b`)},
	{slot: SlotAMI, kinds: ec2Only(), re: regexp.MustCompile(`\b(ami-[0-9a-f]{8,17})\b`)},
	{slot: SlotSSHCIDR, kinds: ec2Only(), re: regexp.MustCompile(`ssh\s+(?:access\s+)?from\s+((?:\d{1,3}\.){3}\d{1,3}/\d{1,2}|anywhere)`), capture: captureSSHCIDR},
	{slot: SlotSSHOverride, kinds: ec2Only(), re: regexp.MustCompile(`\b(?:insecure|override|unrestricted)\b`), capture: constant("true")},
	{slot: SlotBucketName, kinds: s3Only(), re: regexp.MustCompile(`bucket\s+(?:named?\s+|called\s+)?([a-z0-9][a-z0-9.-]{2,62})`), capture: captureBareName},
	{slot: SlotDatabaseName, kinds: rdsOnly(), re: regexp.MustCompile(`database\s+(?:named?\s+|called\s+)?([a-z][a-z0-9-]*)`), capture: captureBareName},
	{slot: SlotDatabaseName, kinds: rdsOnly(), re: regexp.MustCompile(`named?\s+([a-z][a-z0-9-]*)`)},
	{slot: SlotName, re: regexp.MustCompile(`(?:named?|called)\s+([a-zA-Z0-9][a-zA-Z0-9._-]*)`)},
	{slot: SlotResourceID, re: regexp.MustCompile(`\b(i-[0-9a-f]{8,17})\b`)},
	{slot: SlotEnvironment, re: regexp.MustCompile(`\b(?:in|for|to)\s+(dev|development|stage|staging|test|prod|production)\b`), capture: captureEnvironment},
}

func captureInstanceType(match []string) (string, bool) {
	family, size, ok := strings.Cut(match[1], ".")
	if !ok || !instanceFamilies[family] || !instanceSizes[size] {
		return "", false
	}
	return match[1], true
}

func captureEngine(match []string) (string, bool) {
	engine, ok := engineAliases[match[1]]
	return engine, ok
}

func captureSSHCIDR(match []string) (string, bool) {
	if match[1] == "anywhere" {
		return "0.0.0.0/0", true
	}
	return match[1], true
}

func captureBareName(match []string) (string, bool) {
	name := strings.Trim(match[1], ".-")
	if name == "" || nameStopwords[name] {
		return "", false
	}
	return name, true
}

func captureEnvironment(match []string) (string, bool) {
	env, ok := environmentAliases[match[1]]
	return env, ok
}

// Extractor slot-fills request text into an Intent using the ordered rule
// tables above. It is pure: no state is kept between calls.
type Extractor struct {
	actions []actionRule
	kinds   []kindRule
	slots   []slotRule
}

// NewExtractor returns an Extractor with the default rule tables.
func NewExtractor() *Extractor {
	return &Extractor{
		actions: actionRules,
		kinds:   kindRules,
		slots:   slotRules,
	}
}

// Extract interprets one request. It returns a ParseError when neither an
// action verb nor a resource kind can be found, or when an action that
// requires a concrete target (delete, query) names no kind.
func (x *Extractor) Extract(text string) (Intent, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Intent{}, &ParseError{Text: text, Reason: "empty request"}
	}
	lowered := strings.ToLower(trimmed)

	kind, kindFound := x.firstKind(lowered)
	realKind := kindFound && kind != KindCustom
	action, actionFound := x.matchAction(lowered, realKind)

	switch {
	case !actionFound && !kindFound:
		return Intent{}, &ParseError{Text: trimmed, Reason: "no action verb or resource kind recognized"}
	case !actionFound:
		// A bare kind mention defaults to code generation.
		action = ActionGenerate
	case !kindFound:
		switch action {
		case ActionDelete, ActionQuery:
			return Intent{}, &ParseError{Text: trimmed, Reason: "no recognizable resource kind"}
		default:
			kind = KindCustom
		}
	}

	it := Intent{
		Action: action,
		Kind:   kind,
		Slots:  make(map[string]string),
	}
	for _, rule := range x.slots {
		if rule.kinds != nil && !rule.kinds[kind] {
			continue
		}
		if _, filled := it.Slots[rule.slot]; filled {
			continue
		}
		match := rule.re.FindStringSubmatch(lowered)
		if match == nil {
			continue
		}
		capture := rule.capture
		if capture == nil {
			capture = firstGroup
		}
		if value, ok := capture(match); ok {
			it.Slots[rule.slot] = value
		}
	}
	if kind == KindCustom {
		it.Slots[SlotRequest] = trimmed
	}
	return it, nil
}

// firstKind returns the kind whose keyword occurs earliest in the text,
// falling back to custom when only template/terraform vocabulary appears.
func (x *Extractor) firstKind(text string) (string, bool) {
	best := ""
	bestIdx := -1
	for _, rule := range x.kinds {
		loc := rule.re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		if bestIdx == -1 || loc[0] < bestIdx {
			best = rule.kind
			bestIdx = loc[0]
		}
	}
	if bestIdx >= 0 {
		return best, true
	}
	if customKindRe.MatchString(text) {
		return KindCustom, true
	}
	return "", false
}

func (x *Extractor) matchAction(text string, realKind bool) (Action, bool) {
	for _, rule := range x.actions {
		if rule.needsRealKind && !realKind {
			continue
		}
		if rule.re.MatchString(text) {
			return rule.action, true
		}
	}
	return "", false
}
