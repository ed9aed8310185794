package gql

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse parses a single statement.
func Parse(input string) (Statement, error) {
	tokens, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: tokens}
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	p.accept(tokSemicolon)
	if p.peek().typ != tokEOF {
		return nil, p.errorf("unexpected %s after statement", p.peek())
	}
	return stmt, nil
}

// Validate parses and discards the statement.
func Validate(input string) error {
	_, err := Parse(input)
	return err
}

type parser struct {
	toks []token
	i    int
}

func (p *parser) peek() token { return p.toks[p.i] }
func (p *parser) next() token { t := p.toks[p.i]; p.i++; return t }
func (p *parser) backup()     { p.i-- }

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Pos: p.peek().pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) accept(typ tokenType) bool {
	if p.peek().typ == typ {
		p.i++
		return true
	}
	return false
}

func (p *parser) expect(typ tokenType, what string) (token, error) {
	if p.peek().typ != typ {
		return token{}, p.errorf("expected %s, found %s", what, p.peek())
	}
	return p.next(), nil
}

// isKw reports whether the current token is the given keyword.
func (p *parser) isKw(word string) bool {
	t := p.peek()
	return t.typ == tokIdent && strings.EqualFold(t.lit, word)
}

// acceptKw consumes the keyword if present.
func (p *parser) acceptKw(word string) bool {
	if p.isKw(word) {
		p.i++
		return true
	}
	return false
}

func (p *parser) expectKw(word string) error {
	if !p.acceptKw(word) {
		return p.errorf("expected %s, found %s", strings.ToUpper(word), p.peek())
	}
	return nil
}

func (p *parser) parseStatement() (Statement, error) {
	switch {
	case p.acceptKw("CREATE"):
		return p.parseCreate()
	case p.acceptKw("DROP"):
		return p.parseDrop()
	case p.acceptKw("ALTER"):
		return p.parseAlter()
	case p.acceptKw("CLEAR"):
		if err := p.expectKw("GRAPH"); err != nil {
			return nil, err
		}
		path, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		return &ClearGraphStatement{Path: path}, nil
	case p.acceptKw("TRUNCATE"):
		if err := p.expectKw("GRAPH"); err != nil {
			return nil, err
		}
		path, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		return &TruncateGraphStatement{Path: path}, nil
	case p.acceptKw("GRANT"):
		return p.parseGrantRevoke(true)
	case p.acceptKw("REVOKE"):
		return p.parseGrantRevoke(false)
	case p.acceptKw("OPTIMIZE"):
		if err := p.expectKw("INDEX"); err != nil {
			return nil, err
		}
		name, err := p.expect(tokIdent, "index name")
		if err != nil {
			return nil, err
		}
		return &IndexStatement{Verb: KindOptimizeIndex, Name: name.lit}, nil
	case p.acceptKw("REINDEX"):
		p.acceptKw("INDEX")
		name, err := p.expect(tokIdent, "index name")
		if err != nil {
			return nil, err
		}
		return &IndexStatement{Verb: KindReindex, Name: name.lit}, nil
	case p.acceptKw("START"), p.acceptKw("BEGIN"):
		p.acceptKw("TRANSACTION")
		return p.parseTxnCharacteristics(&StartTransactionStatement{})
	case p.acceptKw("COMMIT"):
		return &CommitStatement{}, nil
	case p.acceptKw("ROLLBACK"):
		return &RollbackStatement{}, nil
	case p.acceptKw("SESSION"):
		return p.parseSessionSet()
	case p.acceptKw("SET"):
		if p.acceptKw("TRANSACTION") {
			return p.parseSetTransaction()
		}
		if p.acceptKw("SESSION") {
			return p.parseSessionSetTail()
		}
		items, err := p.parseSetItems()
		if err != nil {
			return nil, err
		}
		return &SetStatement{Items: items}, nil
	case p.acceptKw("INSERT"):
		patterns, err := p.parsePatternList()
		if err != nil {
			return nil, err
		}
		return &InsertStatement{Patterns: patterns}, nil
	case p.acceptKw("MATCH"):
		return p.parseMatch()
	case p.acceptKw("REMOVE"):
		items, err := p.parseRemoveItems()
		if err != nil {
			return nil, err
		}
		return &RemoveStatement{Items: items}, nil
	case p.acceptKw("DELETE"):
		targets, err := p.parseIdentList()
		if err != nil {
			return nil, err
		}
		return &DeleteStatement{Targets: targets}, nil
	case p.acceptKw("CALL"):
		return p.parseCall()
	}
	return nil, p.errorf("unexpected %s at start of statement", p.peek())
}

// parsePath parses /seg[/seg] or a bare identifier (relative reference).
func (p *parser) parsePath() (CatalogPath, error) {
	var segs []string
	if p.accept(tokSlash) {
		t, err := p.expect(tokIdent, "path segment")
		if err != nil {
			return CatalogPath{}, err
		}
		segs = append(segs, t.lit)
		for p.accept(tokSlash) {
			t, err := p.expect(tokIdent, "path segment")
			if err != nil {
				return CatalogPath{}, err
			}
			segs = append(segs, t.lit)
		}
		return CatalogPath{Segments: segs}, nil
	}
	t, err := p.expect(tokIdent, "name or path")
	if err != nil {
		return CatalogPath{}, err
	}
	return CatalogPath{Segments: []string{t.lit}}, nil
}

func (p *parser) parseIfNotExists() bool {
	if p.acceptKw("IF") {
		if p.acceptKw("NOT") {
			p.acceptKw("EXISTS")
			return true
		}
		p.backup() // IF without NOT is not ours
	}
	return false
}

func (p *parser) parseIfExists() bool {
	if p.acceptKw("IF") {
		if p.acceptKw("EXISTS") {
			return true
		}
		p.backup()
	}
	return false
}

func (p *parser) parseCreate() (Statement, error) {
	switch {
	case p.acceptKw("SCHEMA"):
		ifNot := p.parseIfNotExists()
		path, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		if !ifNot {
			ifNot = p.parseIfNotExists()
		}
		return &CreateSchemaStatement{Path: path, IfNotExists: ifNot}, nil

	case p.acceptKw("GRAPH"):
		if p.acceptKw("TYPE") {
			return p.parseCreateGraphType()
		}
		ifNot := p.parseIfNotExists()
		path, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		stmt := &CreateGraphStatement{Path: path, IfNotExists: ifNot}
		if p.acceptKw("TYPED") {
			t, err := p.expect(tokIdent, "graph type name")
			if err != nil {
				return nil, err
			}
			stmt.TypeName = t.lit
		}
		return stmt, nil

	case p.acceptKw("USER"):
		name, err := p.expect(tokIdent, "username")
		if err != nil {
			return nil, err
		}
		stmt := &CreateUserStatement{Username: name.lit}
		if p.acceptKw("PASSWORD") {
			pw, err := p.expect(tokString, "password string")
			if err != nil {
				return nil, err
			}
			stmt.Password = pw.lit
		}
		return stmt, nil

	case p.acceptKw("ROLE"):
		name, err := p.expect(tokIdent, "role name")
		if err != nil {
			return nil, err
		}
		return &CreateRoleStatement{Name: name.lit}, nil

	case p.acceptKw("INDEX"):
		name, err := p.expect(tokIdent, "index name")
		if err != nil {
			return nil, err
		}
		stmt := &IndexStatement{Verb: KindCreateIndex, Name: name.lit}
		if p.acceptKw("ON") {
			path, err := p.parsePath()
			if err != nil {
				return nil, err
			}
			stmt.GraphPath = path
		}
		return stmt, nil
	}
	return nil, p.errorf("expected SCHEMA, GRAPH, USER, ROLE, or INDEX after CREATE")
}

func (p *parser) parseDrop() (Statement, error) {
	switch {
	case p.acceptKw("SCHEMA"):
		ifExists := p.parseIfExists()
		path, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		if !ifExists {
			ifExists = p.parseIfExists()
		}
		cascade := p.acceptKw("CASCADE")
		return &DropSchemaStatement{Path: path, IfExists: ifExists, Cascade: cascade}, nil

	case p.acceptKw("GRAPH"):
		if p.acceptKw("TYPE") {
			ifExists := p.parseIfExists()
			name, err := p.expect(tokIdent, "graph type name")
			if err != nil {
				return nil, err
			}
			cascade := p.acceptKw("CASCADE")
			return &DropGraphTypeStatement{Name: name.lit, IfExists: ifExists, Cascade: cascade}, nil
		}
		ifExists := p.parseIfExists()
		path, err := p.parsePath()
		if err != nil {
			return nil, err
		}
		if !ifExists {
			ifExists = p.parseIfExists()
		}
		cascade := p.acceptKw("CASCADE")
		return &DropGraphStatement{Path: path, IfExists: ifExists, Cascade: cascade}, nil

	case p.acceptKw("USER"):
		ifExists := p.parseIfExists()
		name, err := p.expect(tokIdent, "username")
		if err != nil {
			return nil, err
		}
		return &DropUserStatement{Username: name.lit, IfExists: ifExists}, nil

	case p.acceptKw("ROLE"):
		ifExists := p.parseIfExists()
		name, err := p.expect(tokIdent, "role name")
		if err != nil {
			return nil, err
		}
		return &DropRoleStatement{Name: name.lit, IfExists: ifExists}, nil

	case p.acceptKw("INDEX"):
		name, err := p.expect(tokIdent, "index name")
		if err != nil {
			return nil, err
		}
		return &IndexStatement{Verb: KindDropIndex, Name: name.lit}, nil
	}
	return nil, p.errorf("expected SCHEMA, GRAPH, USER, ROLE, or INDEX after DROP")
}

func (p *parser) parseAlter() (Statement, error) {
	switch {
	case p.acceptKw("GRAPH"):
		if err := p.expectKw("TYPE"); err != nil {
			return nil, err
		}
		name, err := p.expect(tokIdent, "graph type name")
		if err != nil {
			return nil, err
		}
		stmt := &AlterGraphTypeStatement{Name: name.lit}
		p.acceptKw("AS")
		if p.peek().typ == tokLParen {
			nodes, edges, err := p.parseGraphTypeBody()
			if err != nil {
				return nil, err
			}
			stmt.NodeTypes, stmt.EdgeTypes = nodes, edges
		}
		return stmt, nil
	case p.acceptKw("INDEX"):
		name, err := p.expect(tokIdent, "index name")
		if err != nil {
			return nil, err
		}
		return &IndexStatement{Verb: KindAlterIndex, Name: name.lit}, nil
	}
	return nil, p.errorf("expected GRAPH TYPE or INDEX after ALTER")
}

func (p *parser) parseCreateGraphType() (Statement, error) {
	ifNot := p.parseIfNotExists()
	name, err := p.expect(tokIdent, "graph type name")
	if err != nil {
		return nil, err
	}
	stmt := &CreateGraphTypeStatement{Name: name.lit, IfNotExists: ifNot}
	p.acceptKw("AS")
	if p.peek().typ == tokLParen {
		nodes, edges, err := p.parseGraphTypeBody()
		if err != nil {
			return nil, err
		}
		stmt.NodeTypes, stmt.EdgeTypes = nodes, edges
	}
	return stmt, nil
}

// parseGraphTypeBody parses ( NODE Label (prop TYPE, ...), EDGE Label FROM
// A TO B (prop TYPE, ...) , ... ).
func (p *parser) parseGraphTypeBody() ([]NodeTypeDecl, []EdgeTypeDecl, error) {
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return nil, nil, err
	}
	var nodes []NodeTypeDecl
	var edges []EdgeTypeDecl
	for {
		switch {
		case p.acceptKw("NODE"):
			label, err := p.expect(tokIdent, "node label")
			if err != nil {
				return nil, nil, err
			}
			props, err := p.parseTypePropList()
			if err != nil {
				return nil, nil, err
			}
			nodes = append(nodes, NodeTypeDecl{Label: label.lit, Properties: props})
		case p.acceptKw("EDGE"):
			label, err := p.expect(tokIdent, "edge label")
			if err != nil {
				return nil, nil, err
			}
			if err := p.expectKw("FROM"); err != nil {
				return nil, nil, err
			}
			from, err := p.expect(tokIdent, "from label")
			if err != nil {
				return nil, nil, err
			}
			if err := p.expectKw("TO"); err != nil {
				return nil, nil, err
			}
			to, err := p.expect(tokIdent, "to label")
			if err != nil {
				return nil, nil, err
			}
			props, err := p.parseTypePropList()
			if err != nil {
				return nil, nil, err
			}
			edges = append(edges, EdgeTypeDecl{
				Label: label.lit, FromLabel: from.lit, ToLabel: to.lit, Properties: props,
			})
		default:
			return nil, nil, p.errorf("expected NODE or EDGE in graph type body")
		}
		if !p.accept(tokComma) {
			break
		}
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return nil, nil, err
	}
	return nodes, edges, nil
}

func (p *parser) parseTypePropList() (map[string]string, error) {
	if p.peek().typ != tokLParen {
		return nil, nil
	}
	p.next()
	props := make(map[string]string)
	for {
		name, err := p.expect(tokIdent, "property name")
		if err != nil {
			return nil, err
		}
		typ, err := p.expect(tokIdent, "property type")
		if err != nil {
			return nil, err
		}
		props[name.lit] = strings.ToUpper(typ.lit)
		if !p.accept(tokComma) {
			break
		}
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}
	return props, nil
}

func (p *parser) parseGrantRevoke(grant bool) (Statement, error) {
	if err := p.expectKw("ROLE"); err != nil {
		return nil, err
	}
	role, err := p.expect(tokIdent, "role name")
	if err != nil {
		return nil, err
	}
	if grant {
		if err := p.expectKw("TO"); err != nil {
			return nil, err
		}
	} else {
		if err := p.expectKw("FROM"); err != nil {
			return nil, err
		}
	}
	user, err := p.expect(tokIdent, "username")
	if err != nil {
		return nil, err
	}
	if grant {
		return &GrantRoleStatement{Role: role.lit, Username: user.lit}, nil
	}
	return &RevokeRoleStatement{Role: role.lit, Username: user.lit}, nil
}

func (p *parser) parseTxnCharacteristics(stmt *StartTransactionStatement) (Statement, error) {
	for {
		switch {
		case p.acceptKw("ISOLATION"):
			if err := p.expectKw("LEVEL"); err != nil {
				return nil, err
			}
			level, err := p.parseIsolationLevel()
			if err != nil {
				return nil, err
			}
			stmt.Isolation = level
		case p.acceptKw("READ"):
			switch {
			case p.acceptKw("ONLY"):
				stmt.AccessMode = "READ ONLY"
			case p.acceptKw("WRITE"):
				stmt.AccessMode = "READ WRITE"
			default:
				return nil, p.errorf("expected ONLY or WRITE after READ")
			}
		default:
			return stmt, nil
		}
		p.accept(tokComma)
	}
}

func (p *parser) parseIsolationLevel() (string, error) {
	switch {
	case p.acceptKw("READ"):
		switch {
		case p.acceptKw("COMMITTED"):
			return "READ COMMITTED", nil
		case p.acceptKw("UNCOMMITTED"):
			return "READ UNCOMMITTED", nil
		}
		return "", p.errorf("expected COMMITTED or UNCOMMITTED after READ")
	case p.acceptKw("REPEATABLE"):
		if err := p.expectKw("READ"); err != nil {
			return "", err
		}
		return "REPEATABLE READ", nil
	case p.acceptKw("SERIALIZABLE"):
		return "SERIALIZABLE", nil
	}
	return "", p.errorf("expected isolation level")
}

func (p *parser) parseSetTransaction() (Statement, error) {
	p.acceptKw("CHARACTERISTICS")
	start := &StartTransactionStatement{}
	if _, err := p.parseTxnCharacteristics(start); err != nil {
		return nil, err
	}
	return &SetTransactionStatement{
		Isolation:  start.Isolation,
		AccessMode: start.AccessMode,
	}, nil
}

// parseSessionSet handles SESSION SET SCHEMA/GRAPH <path>.
func (p *parser) parseSessionSet() (Statement, error) {
	if err := p.expectKw("SET"); err != nil {
		return nil, err
	}
	return p.parseSessionSetTail()
}

func (p *parser) parseSessionSetTail() (Statement, error) {
	var target string
	switch {
	case p.acceptKw("SCHEMA"):
		target = "schema"
	case p.acceptKw("GRAPH"):
		target = "graph"
	default:
		return nil, p.errorf("expected SCHEMA or GRAPH after SESSION SET")
	}
	p.accept(tokEq)
	path, err := p.parsePath()
	if err != nil {
		return nil, err
	}
	return &SessionSetStatement{Target: target, Path: path}, nil
}

// --- patterns ---

func (p *parser) parsePatternList() ([]*PathPattern, error) {
	var patterns []*PathPattern
	for {
		pat, err := p.parsePathPattern()
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, pat)
		if !p.accept(tokComma) {
			break
		}
	}
	return patterns, nil
}

func (p *parser) parsePathPattern() (*PathPattern, error) {
	node, err := p.parseNodePattern()
	if err != nil {
		return nil, err
	}
	pattern := &PathPattern{Nodes: []*NodePattern{node}}
	for {
		var direction string
		switch p.peek().typ {
		case tokMinus:
			p.next()
			direction = "right" // provisional; resolved after the bracket
		case tokArrowLeft:
			p.next()
			direction = "left"
		default:
			return pattern, nil
		}

		edge := &EdgePattern{Direction: direction}
		if p.accept(tokLBracket) {
			if p.peek().typ == tokIdent && p.toks[p.i+1].typ == tokColon {
				edge.Variable = p.next().lit
			}
			if p.accept(tokColon) {
				label, err := p.expect(tokIdent, "edge label")
				if err != nil {
					return nil, err
				}
				edge.Label = label.lit
			}
			if p.peek().typ == tokLBrace {
				props, err := p.parseMapExpr()
				if err != nil {
					return nil, err
				}
				edge.Properties = props
			}
			if _, err := p.expect(tokRBracket, "']'"); err != nil {
				return nil, err
			}
		}

		switch p.peek().typ {
		case tokArrowRight:
			p.next()
			if direction == "left" {
				return nil, p.errorf("edge cannot point both directions")
			}
			edge.Direction = "right"
		case tokMinus:
			p.next()
			if direction != "left" {
				edge.Direction = "undirected"
			}
		default:
			return nil, p.errorf("expected '->' or '-' to close edge pattern")
		}

		next, err := p.parseNodePattern()
		if err != nil {
			return nil, err
		}
		pattern.Edges = append(pattern.Edges, edge)
		pattern.Nodes = append(pattern.Nodes, next)
	}
}

func (p *parser) parseNodePattern() (*NodePattern, error) {
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return nil, err
	}
	node := &NodePattern{}
	if p.peek().typ == tokIdent {
		node.Variable = p.next().lit
	}
	for p.accept(tokColon) {
		label, err := p.expect(tokIdent, "label")
		if err != nil {
			return nil, err
		}
		node.Labels = append(node.Labels, label.lit)
	}
	if p.peek().typ == tokLBrace {
		props, err := p.parseMapExpr()
		if err != nil {
			return nil, err
		}
		node.Properties = props
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}
	return node, nil
}

// --- MATCH ---

func (p *parser) parseMatch() (Statement, error) {
	pattern, err := p.parsePathPattern()
	if err != nil {
		return nil, err
	}
	stmt := &MatchStatement{Pattern: pattern, Limit: -1}

	if p.acceptKw("WHERE") {
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}

	switch {
	case p.acceptKw("RETURN"):
		items, err := p.parseReturnItems()
		if err != nil {
			return nil, err
		}
		stmt.Return = items
		if p.acceptKw("ORDER") {
			if err := p.expectKw("BY"); err != nil {
				return nil, err
			}
			keys, err := p.parseOrderKeys()
			if err != nil {
				return nil, err
			}
			stmt.OrderBy = keys
		}
		if p.acceptKw("LIMIT") {
			num, err := p.expect(tokNumber, "limit")
			if err != nil {
				return nil, err
			}
			limit, err := strconv.Atoi(num.lit)
			if err != nil {
				return nil, p.errorf("invalid LIMIT %q", num.lit)
			}
			stmt.Limit = limit
		}
	case p.acceptKw("SET"):
		items, err := p.parseSetItems()
		if err != nil {
			return nil, err
		}
		stmt.Set = items
	case p.acceptKw("REMOVE"):
		items, err := p.parseRemoveItems()
		if err != nil {
			return nil, err
		}
		stmt.Remove = items
	case p.acceptKw("DETACH"):
		if err := p.expectKw("DELETE"); err != nil {
			return nil, err
		}
		stmt.Detach = true
		targets, err := p.parseIdentList()
		if err != nil {
			return nil, err
		}
		stmt.Delete = targets
	case p.acceptKw("DELETE"):
		targets, err := p.parseIdentList()
		if err != nil {
			return nil, err
		}
		stmt.Delete = targets
	case p.acceptKw("INSERT"):
		patterns, err := p.parsePatternList()
		if err != nil {
			return nil, err
		}
		stmt.Insert = patterns
	default:
		return nil, p.errorf("expected RETURN, SET, REMOVE, DELETE, or INSERT after MATCH pattern")
	}
	return stmt, nil
}

func (p *parser) parseReturnItems() ([]ReturnItem, error) {
	var items []ReturnItem
	for {
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		item := ReturnItem{Expr: expr}
		if p.acceptKw("AS") {
			alias, err := p.expect(tokIdent, "alias")
			if err != nil {
				return nil, err
			}
			item.Alias = alias.lit
		}
		items = append(items, item)
		if !p.accept(tokComma) {
			break
		}
	}
	return items, nil
}

func (p *parser) parseOrderKeys() ([]OrderKey, error) {
	var keys []OrderKey
	for {
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		key := OrderKey{Expr: expr}
		if p.acceptKw("DESC") || p.acceptKw("DESCENDING") {
			key.Descending = true
		} else if p.acceptKw("ASC") || p.acceptKw("ASCENDING") {
			key.Descending = false
		}
		keys = append(keys, key)
		if !p.accept(tokComma) {
			break
		}
	}
	return keys, nil
}

func (p *parser) parseSetItems() ([]SetItem, error) {
	var items []SetItem
	for {
		target, err := p.expect(tokIdent, "variable")
		if err != nil {
			return nil, err
		}
		item := SetItem{Target: target.lit}
		if p.accept(tokDot) {
			prop, err := p.expect(tokIdent, "property name")
			if err != nil {
				return nil, err
			}
			item.Property = prop.lit
			if _, err := p.expect(tokEq, "'='"); err != nil {
				return nil, err
			}
			value, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			item.Value = value
		} else {
			// Label assignment: var:Label[:Label...]
			for p.accept(tokColon) {
				label, err := p.expect(tokIdent, "label")
				if err != nil {
					return nil, err
				}
				item.Labels = append(item.Labels, label.lit)
			}
			if len(item.Labels) == 0 {
				return nil, p.errorf("expected '.' or ':' in SET item")
			}
		}
		items = append(items, item)
		if !p.accept(tokComma) {
			break
		}
	}
	return items, nil
}

func (p *parser) parseRemoveItems() ([]RemoveItem, error) {
	var items []RemoveItem
	for {
		target, err := p.expect(tokIdent, "variable")
		if err != nil {
			return nil, err
		}
		item := RemoveItem{Target: target.lit}
		switch {
		case p.accept(tokDot):
			prop, err := p.expect(tokIdent, "property name")
			if err != nil {
				return nil, err
			}
			item.Property = prop.lit
		case p.accept(tokColon):
			label, err := p.expect(tokIdent, "label")
			if err != nil {
				return nil, err
			}
			item.Label = label.lit
		default:
			return nil, p.errorf("expected '.' or ':' in REMOVE item")
		}
		items = append(items, item)
		if !p.accept(tokComma) {
			break
		}
	}
	return items, nil
}

func (p *parser) parseIdentList() ([]string, error) {
	var names []string
	for {
		name, err := p.expect(tokIdent, "identifier")
		if err != nil {
			return nil, err
		}
		names = append(names, name.lit)
		if !p.accept(tokComma) {
			break
		}
	}
	return names, nil
}

// --- CALL ---

func (p *parser) parseCall() (Statement, error) {
	first, err := p.expect(tokIdent, "procedure name")
	if err != nil {
		return nil, err
	}
	stmt := &CallStatement{Procedure: first.lit}
	if p.accept(tokDot) {
		name, err := p.expect(tokIdent, "procedure name")
		if err != nil {
			return nil, err
		}
		stmt.Namespace = first.lit
		stmt.Procedure = name.lit
	}
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return nil, err
	}
	if p.peek().typ != tokRParen {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			stmt.Args = append(stmt.Args, arg)
			if !p.accept(tokComma) {
				break
			}
		}
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}
	if p.acceptKw("YIELD") {
		fields, err := p.parseIdentList()
		if err != nil {
			return nil, err
		}
		stmt.Yield = fields
	}
	if p.acceptKw("WHERE") {
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}
	return stmt, nil
}

// --- expressions ---

func (p *parser) parseExpr() (Expr, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.acceptKw("OR") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.acceptKw("AND") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (Expr, error) {
	if p.acceptKw("NOT") {
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: "NOT", Operand: operand}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	var op string
	switch p.peek().typ {
	case tokEq:
		op = "="
	case tokNeq:
		op = "<>"
	case tokLt:
		op = "<"
	case tokLte:
		op = "<="
	case tokGt:
		op = ">"
	case tokGte:
		op = ">="
	default:
		return left, nil
	}
	p.next()
	right, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	return &Binary{Op: op, Left: left, Right: right}, nil
}

func (p *parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch p.peek().typ {
		case tokPlus:
			op = "+"
		case tokMinus:
			op = "-"
		default:
			return left, nil
		}
		p.next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch p.peek().typ {
		case tokStar:
			op = "*"
		case tokSlash:
			op = "/"
		default:
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseUnary() (Expr, error) {
	if p.accept(tokMinus) {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: "-", Operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	t := p.peek()
	switch t.typ {
	case tokString:
		p.next()
		return &Literal{Value: t.lit}, nil
	case tokNumber:
		p.next()
		f, err := strconv.ParseFloat(t.lit, 64)
		if err != nil {
			return nil, p.errorf("invalid number %q", t.lit)
		}
		return &Literal{Value: f}, nil
	case tokLBracket:
		p.next()
		list := &ListExpr{}
		if p.peek().typ != tokRBracket {
			for {
				item, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				list.Items = append(list.Items, item)
				if !p.accept(tokComma) {
					break
				}
			}
		}
		if _, err := p.expect(tokRBracket, "']'"); err != nil {
			return nil, err
		}
		return list, nil
	case tokLBrace:
		return p.parseMapExpr()
	case tokLParen:
		p.next()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return inner, nil
	case tokIdent:
		switch strings.ToUpper(t.lit) {
		case "TRUE":
			p.next()
			return &Literal{Value: true}, nil
		case "FALSE":
			p.next()
			return &Literal{Value: false}, nil
		case "NULL":
			p.next()
			return &Literal{Value: nil}, nil
		}
		p.next()
		// Function call, namespaced call, property access, or bare ident.
		if p.accept(tokDot) {
			second, err := p.expect(tokIdent, "identifier")
			if err != nil {
				return nil, err
			}
			if p.peek().typ == tokLParen {
				return p.parseFuncArgs(t.lit, second.lit)
			}
			return &PropertyAccess{Object: t.lit, Property: second.lit}, nil
		}
		if p.peek().typ == tokLParen {
			return p.parseFuncArgs("", t.lit)
		}
		return &Ident{Name: t.lit}, nil
	}
	return nil, p.errorf("unexpected %s in expression", t)
}

func (p *parser) parseFuncArgs(namespace, name string) (Expr, error) {
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return nil, err
	}
	call := &FuncCall{Namespace: namespace, Name: strings.ToLower(name)}
	if p.accept(tokStar) {
		call.Star = true
	} else if p.peek().typ != tokRParen {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
			if !p.accept(tokComma) {
				break
			}
		}
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}
	return call, nil
}

func (p *parser) parseMapExpr() (*MapExpr, error) {
	if _, err := p.expect(tokLBrace, "'{'"); err != nil {
		return nil, err
	}
	m := &MapExpr{}
	if p.peek().typ != tokRBrace {
		for {
			key, err := p.expect(tokIdent, "property name")
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokColon, "':'"); err != nil {
				return nil, err
			}
			value, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			m.Keys = append(m.Keys, key.lit)
			m.Values = append(m.Values, value)
			if !p.accept(tokComma) {
				break
			}
		}
	}
	if _, err := p.expect(tokRBrace, "'}'"); err != nil {
		return nil, err
	}
	return m, nil
}
