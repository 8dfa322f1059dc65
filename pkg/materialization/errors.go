package materialization

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/relplan/pkg/relation"
)

// RelationCannotBeRenamedError is returned when a replace needs to rename
// the existing relation but the warehouse reported that it cannot be
// renamed. The node fails; no other plan is attempted.
type RelationCannotBeRenamedError struct {
	Relation string
	Type     relation.Type
}

func (e *RelationCannotBeRenamedError) Error() string {
	return fmt.Sprintf("cannot replace %s %s: the existing relation cannot be renamed", e.Type, e.Relation)
}

// ConfigurationChangeError is returned when a relation's configuration
// changed and the node asked to fail on configuration changes.
type ConfigurationChangeError struct {
	Relation string
	Changes  []relation.Change
}

func (e *ConfigurationChangeError) Error() string {
	descs := make([]string, len(e.Changes))
	for i, c := range e.Changes {
		descs[i] = c.String()
	}
	return fmt.Sprintf("configuration of %s changed (%s) and on_configuration_change is fail", e.Relation, strings.Join(descs, "; "))
}
