package executor

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/relplan/pkg/materialization"
	"github.com/leapstack-labs/relplan/pkg/relation"
)

// stagingSuffix names the table incremental merges stage rows in.
const stagingSuffix = "__relplan_new"

// Statements renders every step of plan into SQL, in order.
func Statements(plan *materialization.Plan) ([]string, error) {
	var out []string
	for _, step := range plan.Steps {
		stmts, err := stepStatements(step)
		if err != nil {
			return nil, fmt.Errorf("failed to render %q: %w", step.Describe(), err)
		}
		out = append(out, stmts...)
	}
	return out, nil
}

func stepStatements(step materialization.Step) ([]string, error) {
	switch s := step.(type) {
	case materialization.CreateStep:
		return createStatements(s.Relation)
	case materialization.DropStep:
		kw, err := keyword(s.Ref.Type())
		if err != nil {
			return nil, err
		}
		if s.IfExists {
			return []string{fmt.Sprintf("drop %s if exists %s", kw, s.Ref.FullyQualifiedPath())}, nil
		}
		return []string{fmt.Sprintf("drop %s %s", kw, s.Ref.FullyQualifiedPath())}, nil
	case materialization.RenameStep:
		kw, err := keyword(s.Ref.Type())
		if err != nil {
			return nil, err
		}
		newName := s.Ref.RenderPolicy().Part(relation.ComponentIdentifier, s.NewName)
		return []string{fmt.Sprintf("alter %s %s rename to %s", kw, s.Ref.FullyQualifiedPath(), newName)}, nil
	case materialization.AlterStep:
		return alterStatements(s.Relation, s.Changes)
	case materialization.RefreshStep:
		if s.Relation.Type() != relation.TypeMaterializedView {
			return nil, fmt.Errorf("cannot refresh a %s", s.Relation.Type())
		}
		return []string{"refresh materialized view " + s.Relation.FullyQualifiedPath()}, nil
	case materialization.InsertStep:
		return insertStatements(s.Relation, s.UniqueKey)
	default:
		return nil, fmt.Errorf("unsupported step %T", step)
	}
}

func keyword(t relation.Type) (string, error) {
	switch t {
	case relation.TypeTable:
		return "table", nil
	case relation.TypeView:
		return "view", nil
	case relation.TypeMaterializedView:
		return "materialized view", nil
	case relation.TypeExternal:
		return "", fmt.Errorf("external relations are managed outside the warehouse")
	default:
		return "", fmt.Errorf("%s relations are not persisted", t)
	}
}

func query(rel relation.Relation) (string, error) {
	q := strings.TrimRight(strings.TrimSpace(rel.Query()), "; \n\t")
	if q == "" {
		return "", fmt.Errorf("%s has no query", rel.FullyQualifiedPath())
	}
	return q, nil
}

func createStatements(rel relation.Relation) ([]string, error) {
	kw, err := keyword(rel.Type())
	if err != nil {
		return nil, err
	}
	q, err := query(rel)
	if err != nil {
		return nil, err
	}
	schema := rel.RenderPolicy().Part(relation.ComponentSchema, rel.SchemaName())
	stmts := []string{
		"create schema if not exists " + schema,
		fmt.Sprintf("create %s %s as\n%s", kw, rel.FullyQualifiedPath(), q),
	}
	if mv, ok := rel.(*relation.MaterializedViewRelation); ok {
		for _, idx := range mv.Indexes() {
			stmts = append(stmts, createIndex(rel, idx))
		}
	}
	return stmts, nil
}

// createIndex leaves naming to the warehouse, so the intermediate relation of
// a replace never collides with the indexes of the relation it replaces.
func createIndex(rel relation.Relation, idx relation.IndexConfig) string {
	method := idx.Method
	if method == "" {
		method = relation.DefaultIndexMethod
	}
	unique := ""
	if idx.Unique {
		unique = "unique "
	}
	return fmt.Sprintf("create %sindex on %s using %s (%s)",
		unique, rel.FullyQualifiedPath(), method, strings.Join(idx.Columns, ", "))
}

func alterStatements(rel relation.Relation, changes []relation.Change) ([]string, error) {
	var stmts []string
	for _, c := range changes {
		idx, ok := c.Context.(relation.IndexConfig)
		if c.Attribute != relation.AttributeIndexes || !ok {
			return nil, fmt.Errorf("cannot alter %s of %s in place", c.Attribute, rel.FullyQualifiedPath())
		}
		switch c.Action {
		case relation.ChangeActionCreate:
			stmts = append(stmts, createIndex(rel, idx))
		case relation.ChangeActionDrop:
			if idx.Name == "" {
				return nil, fmt.Errorf("cannot drop unnamed index %s on %s", idx.Signature(), rel.FullyQualifiedPath())
			}
			path := rel.RenderPolicy().Render(rel.DatabaseName(), rel.SchemaName(), idx.Name)
			stmts = append(stmts, "drop index if exists "+path)
		default:
			return nil, fmt.Errorf("unsupported index change %q", c.Action)
		}
	}
	return stmts, nil
}

// insertStatements loads the query's rows into rel. With a unique key the
// rows are staged first so rows with matching keys can be deleted.
func insertStatements(rel relation.Relation, uniqueKey string) ([]string, error) {
	q, err := query(rel)
	if err != nil {
		return nil, err
	}
	target := rel.FullyQualifiedPath()
	if uniqueKey == "" {
		return []string{fmt.Sprintf("insert into %s\n%s", target, q)}, nil
	}

	// Statements may run on different pooled connections, so the staging
	// table is a regular table next to the target.
	staging := rel.WithIdentifier(rel.Name() + stagingSuffix).FullyQualifiedPath()
	keys := keyColumns(uniqueKey)
	return []string{
		"drop table if exists " + staging,
		fmt.Sprintf("create table %s as\n%s", staging, q),
		fmt.Sprintf("delete from %s where %s in (select %s from %s)", target, keys, strings.TrimSuffix(strings.TrimPrefix(keys, "("), ")"), staging),
		fmt.Sprintf("insert into %s select * from %s", target, staging),
		"drop table if exists " + staging,
	}, nil
}

// keyColumns renders a unique key, wrapping composite keys in a row
// constructor.
func keyColumns(uniqueKey string) string {
	var cols []string
	for _, c := range strings.Split(uniqueKey, ",") {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}
	if len(cols) == 1 {
		return cols[0]
	}
	return "(" + strings.Join(cols, ", ") + ")"
}
