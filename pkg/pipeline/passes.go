package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/malbeclabs/budgetquery/pkg/catalog"
)

// Pass is one rewrite step applied to interpreted SQL before it is returned as ready.
type Pass interface {
	Name() string
	Rewrite(ctx context.Context, sql string) (string, error)
}

// Pass names accepted by ParsePasses.
const (
	PassPhysical = "physical"
	PassLLM      = "llm"
	PassCheck    = "check"
)

// ErrUnknownIdentifier is wrapped by IdentifierCheckPass when SQL names something outside the catalog.
var ErrUnknownIdentifier = errors.New("unknown identifier")

// ParsePasses builds the pass list from a comma-separated list such as "llm,physical". An empty
// list yields no passes, so the interpreter returns the model's SQL as is.
func ParsePasses(names string, c *catalog.Catalog, llm LLMClient, prompts *Prompts) ([]Pass, error) {
	var passes []Pass
	for _, name := range strings.Split(names, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		switch name {
		case "":
			continue
		case PassPhysical:
			passes = append(passes, NewPhysicalNamePass(c))
		case PassLLM:
			if llm == nil || prompts == nil {
				return nil, fmt.Errorf("pass %q requires an LLM client and prompts", name)
			}
			passes = append(passes, NewLLMRewritePass(c, llm, prompts))
		case PassCheck:
			passes = append(passes, NewIdentifierCheckPass(c))
		default:
			return nil, fmt.Errorf("unknown translation pass %q", name)
		}
	}
	return passes, nil
}

// PhysicalNamePass replaces logical table and column names with their physical identifiers.
// Only bare identifier tokens are rewritten: string literals, comments, already delimited
// identifiers and function names are left alone, and a name never matches inside a longer one.
type PhysicalNamePass struct {
	catalog *catalog.Catalog
}

func NewPhysicalNamePass(c *catalog.Catalog) *PhysicalNamePass {
	return &PhysicalNamePass{catalog: c}
}

func (p *PhysicalNamePass) Name() string { return PassPhysical }

func (p *PhysicalNamePass) Rewrite(_ context.Context, sql string) (string, error) {
	toks := lexSQL(sql)
	out := make([]token, len(toks))
	copy(out, toks)
	for i, t := range toks {
		if t.kind != tokWord {
			continue
		}
		if next := nextSignificant(toks, i); next >= 0 && toks[next].text == "(" {
			continue
		}
		if physical, ok := p.catalog.PhysicalTable(t.text); ok {
			out[i].text = physical
			continue
		}
		if physical, ok := p.columnFor(toks, i); ok {
			out[i].text = physical
		}
	}
	return joinTokens(out), nil
}

// columnFor resolves the word at i as a column, using a preceding "table." qualifier when the
// qualifier is a catalog table and the unique unqualified match otherwise.
func (p *PhysicalNamePass) columnFor(toks []token, i int) (string, bool) {
	if dot := prevSignificant(toks, i); dot >= 0 && toks[dot].text == "." {
		if q := prevSignificant(toks, dot); q >= 0 {
			if _, ok := p.catalog.Table(toks[q].text); ok {
				return p.catalog.PhysicalColumn(toks[q].text, toks[i].text)
			}
		}
	}
	col, ok := p.catalog.LookupColumn(toks[i].text)
	if !ok {
		return "", false
	}
	return col.Physical, true
}

// LLMRewritePass asks the model to rewrite logical names into physical ones.
type LLMRewritePass struct {
	llm    LLMClient
	prompt string
}

func NewLLMRewritePass(c *catalog.Catalog, llm LLMClient, prompts *Prompts) *LLMRewritePass {
	return &LLMRewritePass{llm: llm, prompt: prompts.BuildRewritePrompt(c)}
}

func (p *LLMRewritePass) Name() string { return PassLLM }

func (p *LLMRewritePass) Rewrite(ctx context.Context, sql string) (string, error) {
	response, err := p.llm.Complete(ctx, p.prompt, sql)
	if err != nil {
		return "", &ServiceError{Op: "rewrite", Err: err}
	}
	rewritten := cleanResponse(response)
	if rewritten == "" {
		return "", &ServiceError{Op: "rewrite", Err: errEmptyResponse}
	}
	return rewritten, nil
}

// IdentifierCheckPass rejects SQL that references tables or delimited identifiers the catalog
// does not define. Bare words are not checked since they include keywords and functions.
type IdentifierCheckPass struct {
	tables  map[string]struct{}
	allowed map[string]struct{}
}

func NewIdentifierCheckPass(c *catalog.Catalog) *IdentifierCheckPass {
	p := &IdentifierCheckPass{
		tables:  make(map[string]struct{}),
		allowed: make(map[string]struct{}),
	}
	for _, t := range c.Tables {
		p.tables[strings.ToLower(t.Name)] = struct{}{}
		p.tables[strings.ToLower(t.Physical)] = struct{}{}
		for _, tok := range lexSQL(t.Physical) {
			if tok.kind == tokQuoted || tok.kind == tokWord {
				p.allowed[strings.ToLower(unquoteIdent(tok.text))] = struct{}{}
			}
		}
		for _, col := range t.Columns {
			p.allowed[strings.ToLower(col.Name)] = struct{}{}
			p.allowed[strings.ToLower(unquoteIdent(col.Physical))] = struct{}{}
		}
	}
	return p
}

func (p *IdentifierCheckPass) Name() string { return PassCheck }

func (p *IdentifierCheckPass) Rewrite(_ context.Context, sql string) (string, error) {
	toks := lexSQL(sql)

	aliases := make(map[string]struct{})
	for i, t := range toks {
		if t.kind == tokWord && strings.EqualFold(t.text, "as") {
			if next := nextSignificant(toks, i); next >= 0 && (toks[next].kind == tokWord || toks[next].kind == tokQuoted) {
				aliases[strings.ToLower(unquoteIdent(toks[next].text))] = struct{}{}
			}
		}
	}

	for i, t := range toks {
		switch {
		case t.kind == tokWord && (strings.EqualFold(t.text, "from") || strings.EqualFold(t.text, "join")):
			name, ok := qualifiedNameAfter(toks, i)
			if !ok {
				continue
			}
			if _, known := p.tables[strings.ToLower(name)]; !known {
				return "", &ServiceError{Op: "identifier check", Err: fmt.Errorf("%w: table %s", ErrUnknownIdentifier, name)}
			}
		case t.kind == tokQuoted:
			name := strings.ToLower(unquoteIdent(t.text))
			if _, ok := p.allowed[name]; ok {
				continue
			}
			if _, ok := aliases[name]; ok {
				continue
			}
			return "", &ServiceError{Op: "identifier check", Err: fmt.Errorf("%w: %s", ErrUnknownIdentifier, t.text)}
		}
	}
	return sql, nil
}

// qualifiedNameAfter returns the dotted name following the keyword at i, e.g. "[dbo].[Table]".
// It reports false for subqueries and table functions.
func qualifiedNameAfter(toks []token, i int) (string, bool) {
	j := nextSignificant(toks, i)
	if j < 0 || (toks[j].kind != tokWord && toks[j].kind != tokQuoted) {
		return "", false
	}
	var sb strings.Builder
	for j < len(toks) {
		if toks[j].kind != tokWord && toks[j].kind != tokQuoted {
			break
		}
		sb.WriteString(toks[j].text)
		if j+1 < len(toks) && toks[j+1].text == "." {
			sb.WriteString(".")
			j += 2
			continue
		}
		j++
		break
	}
	if j < len(toks) && toks[j].text == "(" {
		return "", false
	}
	return sb.String(), true
}
