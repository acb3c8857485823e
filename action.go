package oxalis

import (
	"fmt"
	"reflect"
)

// Action is an immutable tagged record describing an intended state change.
// Two actions are equal iff their tags match and their payload fields are
// structurally equal.
type Action struct {
	Tag    string
	Fields map[string]any
}

func (Action) dispatchable() {}

// Field returns the payload field with the given name, or nil when absent.
func (a Action) Field(name string) any {
	return a.Fields[name]
}

func (a Action) Equal(b Action) bool {
	return a.Tag == b.Tag && reflect.DeepEqual(a.Fields, b.Fields)
}

// Creator defines an action tag together with its ordered payload field
// names. Instances are produced by binding payload values to the tag.
type Creator struct {
	tag    string
	fields []string
}

func NewCreator(tag string, fields ...string) Creator {
	if tag == "" {
		panic("oxalis: empty action tag")
	}
	return Creator{tag: tag, fields: fields}
}

func (c Creator) Tag() string { return c.tag }

// New binds payload values positionally to the creator's field names.
func (c Creator) New(values ...any) Action {
	if len(values) != len(c.fields) {
		panic(fmt.Sprintf("oxalis: action %q takes %d fields, got %d",
			c.tag, len(c.fields), len(values)))
	}
	act := Action{Tag: c.tag}
	if len(values) > 0 {
		act.Fields = make(map[string]any, len(values))
		for i, name := range c.fields {
			act.Fields[name] = values[i]
		}
	}
	return act
}

// Match reports whether the action was produced by this creator.
// Only the tag is compared, payload fields are ignored.
func (c Creator) Match(a Action) bool {
	return a.Tag == c.tag
}

// Pred returns the creator's tag predicate for use with MatchBuilder.When.
func (c Creator) Pred() TagPredicate {
	return TagIs(c.tag)
}

// TagPredicate decides whether a reducer case applies to an action tag.
type TagPredicate func(tag string) bool

func TagIs(tag string) TagPredicate {
	return func(t string) bool { return t == tag }
}

func AnyOf(tags ...string) TagPredicate {
	return func(t string) bool {
		for _, tag := range tags {
			if t == tag {
				return true
			}
		}
		return false
	}
}
