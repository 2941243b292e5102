package certify

import (
	"fmt"
	"strings"

	"go.starlark.net/syntax"

	"github.com/carverauto/fieldpipe/pkg/manifest"
	"github.com/carverauto/fieldpipe/pkg/models"
)

// bannedIdents are identifiers manifest code may not reference. None of
// them exist in the sandbox environment, so referencing one is either
// an output attempt (print) or cargo-culted I/O code that would fail at
// runtime anyway; certification surfaces it up front.
//
//nolint:gochecknoglobals // fixed policy list
var bannedIdents = map[string]string{
	"print": "output emission is denied inside the sandbox",
}

// bannedTokens is the best-effort textual screen for I/O-shaped code.
//
//nolint:gochecknoglobals // fixed policy list
var bannedTokens = []string{
	"socket",
	"urlopen",
	"subprocess",
	"os.system",
}

// genericNames are whole descriptor names too vague to survive review.
//
//nolint:gochecknoglobals // fixed policy list
var genericNames = map[string]struct{}{
	"data":   {},
	"value":  {},
	"values": {},
	"field":  {},
	"fields": {},
	"info":   {},
	"misc":   {},
	"temp":   {},
	"other":  {},
}

// staticCheck runs the source-level rules: parseability, banned
// identifier references, load statements, and the textual banned-API
// screen. It never executes manifest code.
func staticCheck(filename, source string) []models.Violation {
	var violations []models.Violation

	file, err := manifest.FileOptions().Parse(filename, source, 0)
	if err != nil {
		violations = append(violations, models.Violation{
			Rule:    RuleContract,
			Message: fmt.Sprintf("source does not parse: %v", err),
		})
	} else {
		violations = append(violations, walkBanned(file)...)
	}

	lower := strings.ToLower(source)
	for _, token := range bannedTokens {
		if strings.Contains(lower, token) {
			violations = append(violations, models.Violation{
				Rule:    RuleBannedAPI,
				Message: fmt.Sprintf("source references banned API %q", token),
			})
		}
	}

	return violations
}

func walkBanned(file *syntax.File) []models.Violation {
	var violations []models.Violation

	for _, stmt := range file.Stmts {
		syntax.Walk(stmt, func(n syntax.Node) bool {
			switch node := n.(type) {
			case *syntax.LoadStmt:
				pos, _ := node.Span()
				violations = append(violations, models.Violation{
					Rule:    RuleBannedAPI,
					Message: fmt.Sprintf("%s: load() is denied inside the sandbox", pos),
				})

			case *syntax.Ident:
				if reason, banned := bannedIdents[node.Name]; banned {
					pos, _ := node.Span()
					violations = append(violations, models.Violation{
						Rule:    RuleBannedAPI,
						Message: fmt.Sprintf("%s: %s: %s", pos, node.Name, reason),
					})
				}
			}

			return true
		})
	}

	return violations
}

// nameCheck applies the genericity rule to the declared descriptor set.
// Grammar and reserved-substring rules are enforced by the registry at
// load time; this covers what only a certification reviewer would
// otherwise catch.
func nameCheck(declared []models.FieldDescriptor) []models.Violation {
	var violations []models.Violation

	for _, d := range declared {
		if _, generic := genericNames[strings.ToLower(d.Name)]; generic {
			violations = append(violations, models.Violation{
				Rule:    RuleNameGeneric,
				Message: fmt.Sprintf("descriptor name %q is too generic", d.Name),
			})
		}
	}

	return violations
}
