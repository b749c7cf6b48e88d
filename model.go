package ofx

import (
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/shopspring/decimal"
)

// Field is schema-only metadata for one declared leaf of an aggregate type:
// its lowercase attribute name (matching the wire tag), its converter, and
// whether it is required. Fields are shared read-only across all instances
// of the aggregate type and never hold instance state.
type Field struct {
	Name     string
	Conv     Converter
	Required bool
}

// Mutex declares a family of alternative wire tags representing one logical
// value, of which at most one (exactly one if Required) may appear. Which
// alternative was present is recorded on the instance under Discriminator.
type Mutex struct {
	Discriminator string
	Tags          []string
	Required      bool
}

// Ordering declares that the wire tag First must appear before Then among an
// aggregate's direct children, e.g. a required inclusion flag before its
// payload.
type Ordering struct {
	First string
	Then  string
}

// Schema declares an aggregate type: its wire tag, ordered fields, the
// repeated-list child tags that must be detached before flattening, and its
// mutex and ordering constraints.
type Schema struct {
	Tag       string
	Fields    []Field
	Lists     []string
	Mutexes   []Mutex
	Orderings []Ordering
}

// Instance is an immutable attribute record built from a completed subtree.
// A field holds either a converted leaf value or, for detached lists, an
// ordered list of nested instances.
type Instance struct {
	Tag   string
	attrs map[string]interface{}
	lists map[string][]*Instance
}

// Has reports whether the named field holds a value.
func (a *Instance) Has(name string) bool {
	_, ok := a.attrs[name]
	return ok
}

// Get returns the named field's converted value, or nil if absent.
func (a *Instance) Get(name string) interface{} {
	return a.attrs[name]
}

// String returns the named string field, or "" if absent.
func (a *Instance) String(name string) string {
	v, _ := a.attrs[name].(string)
	return v
}

// Int returns the named integer field, or 0 if absent.
func (a *Instance) Int(name string) int64 {
	v, _ := a.attrs[name].(int64)
	return v
}

// Bool returns the named boolean field, or false if absent.
func (a *Instance) Bool(name string) bool {
	v, _ := a.attrs[name].(bool)
	return v
}

// Decimal returns the named decimal field, or zero if absent.
func (a *Instance) Decimal(name string) decimal.Decimal {
	v, _ := a.attrs[name].(decimal.Decimal)
	return v
}

// DateTime returns the named datetime field, or the zero time if absent.
func (a *Instance) DateTime(name string) time.Time {
	v, _ := a.attrs[name].(time.Time)
	return v
}

// List returns the detached list converted from the named repeated-list
// child, e.g. List("ballist") for a BALLIST.
func (a *Instance) List(name string) []*Instance {
	return a.lists[name]
}

// Registry is the closed tag->schema table. It is built once at startup and
// shared read-only, so concurrent parses of independent documents are safe.
type Registry struct {
	schemas map[string]*Schema
}

// NewRegistry returns a registry over the given schemas.
func NewRegistry(schemas ...*Schema) *Registry {
	r := &Registry{schemas: make(map[string]*Schema, len(schemas))}
	for _, s := range schemas {
		r.schemas[s.Tag] = s
	}
	return r
}

// Schema returns the schema registered for the given tag.
func (r *Registry) Schema(tag string) (*Schema, bool) {
	s, ok := r.schemas[tag]
	return s, ok
}

// Convert materializes the given node through the schema registered for its
// tag. Unknown tags fail predictably instead of falling through to dynamic
// lookup.
func (r *Registry) Convert(node *Node) (*Instance, error) {
	s, ok := r.schemas[node.Name]
	if !ok {
		return nil, &SpecViolation{
			Aggregate: node.Name,
			Kind:      ViolationUnknown,
			Reason:    "no aggregate registered for tag",
		}
	}
	return r.build(s, node)
}

// proprietary reports whether the tag follows the namespaced proprietary
// extension convention (e.g. INTU.BID) and should be silently dropped.
func proprietary(tag string) bool {
	return strings.Contains(tag, ".")
}

// flatten recursively merges the leaves of node and of each nested non-list
// sub-aggregate into one flat lowercase-keyed namespace. Repeated-list
// sub-aggregates must have been detached beforehand; any key collision
// between siblings is fatal.
func flatten(node *Node) (map[string]string, error) {
	attrs := make(map[string]string)
	for _, child := range node.Children {
		if proprietary(child.Name) {
			glog.V(3).Infof("dropping proprietary tag <%s>", child.Name)
			continue
		}
		if child.Text != "" {
			key := strings.ToLower(child.Name)
			if _, ok := attrs[key]; ok {
				return nil, &SpecViolation{
					Aggregate: node.Name,
					Field:     key,
					Kind:      ViolationCollision,
					Reason:    "duplicate element in flattened namespace",
				}
			}
			attrs[key] = child.Text
			continue
		}
		nested, err := flatten(child)
		if err != nil {
			return nil, err
		}
		for key, value := range nested {
			if _, ok := attrs[key]; ok {
				return nil, &SpecViolation{
					Aggregate: node.Name,
					Field:     key,
					Kind:      ViolationCollision,
					Reason:    "sub-aggregate <" + child.Name + "> collides with sibling in flattened namespace",
				}
			}
			attrs[key] = value
		}
	}
	return attrs, nil
}

// checkOrderings verifies declared relative positions among direct children.
// A violation is reported distinctly from a missing-field failure.
func checkOrderings(s *Schema, node *Node) error {
	position := make(map[string]int, len(node.Children))
	for i, child := range node.Children {
		if _, ok := position[child.Name]; !ok {
			position[child.Name] = i
		}
	}
	for _, o := range s.Orderings {
		first, haveFirst := position[o.First]
		then, haveThen := position[o.Then]
		if haveFirst && haveThen && then < first {
			return &SpecViolation{
				Aggregate: s.Tag,
				Field:     strings.ToLower(o.Then),
				Kind:      ViolationOrdering,
				Reason:    "<" + o.Then + "> must not precede <" + o.First + ">",
			}
		}
	}
	return nil
}

// resolveMutexes records, for each declared mutex family, which alternative
// is present in the subtree as the family's discriminator value. The search
// recurses because the alternatives may sit inside a nested sub-aggregate
// (ORIGCURRENCY under INVBUY) that flattening will erase.
func resolveMutexes(s *Schema, node *Node) (map[string]string, error) {
	derived := make(map[string]string)
	for _, m := range s.Mutexes {
		var present []string
		for _, tag := range m.Tags {
			if len(node.FindAll(tag)) != 0 {
				present = append(present, tag)
			}
		}
		switch {
		case len(present) > 1:
			return nil, &SpecViolation{
				Aggregate: s.Tag,
				Field:     m.Discriminator,
				Kind:      ViolationMutex,
				Reason:    "may contain at most one of " + strings.Join(m.Tags, ", "),
			}
		case len(present) == 0 && m.Required:
			return nil, &SpecViolation{
				Aggregate: s.Tag,
				Field:     m.Discriminator,
				Kind:      ViolationMutex,
				Reason:    "must contain exactly one of " + strings.Join(m.Tags, ", "),
			}
		case len(present) == 1:
			derived[m.Discriminator] = present[0]
		}
	}
	return derived, nil
}

// build constructs an immutable instance from the node: ordering validation,
// repeated-list detachment, mutex resolution, flattening, then per-field
// conversion with required/undeclared checks.
func (r *Registry) build(s *Schema, node *Node) (*Instance, error) {
	glog.V(3).Infof("converting <%s>", node.Name)
	if err := checkOrderings(s, node); err != nil {
		return nil, err
	}

	// Strip repeated-list sub-aggregates and convert their members
	// independently; the flat namespace can not hold repeated siblings.
	lists := make(map[string][]*Instance)
	for _, listTag := range s.Lists {
		container := node.Find(listTag)
		if container == nil {
			continue
		}
		node.Remove(container)
		members := make([]*Instance, 0, len(container.Children))
		for _, member := range container.Children {
			converted, err := r.Convert(member)
			if err != nil {
				return nil, err
			}
			members = append(members, converted)
		}
		lists[strings.ToLower(listTag)] = members
	}

	derived, err := resolveMutexes(s, node)
	if err != nil {
		return nil, err
	}

	raw, err := flatten(node)
	if err != nil {
		return nil, err
	}

	attrs := make(map[string]interface{}, len(raw)+len(derived))
	for _, f := range s.Fields {
		text, ok := raw[f.Name]
		if !ok {
			if f.Required {
				return nil, &SpecViolation{
					Aggregate: s.Tag,
					Field:     f.Name,
					Kind:      ViolationMissing,
					Reason:    "required element is absent",
				}
			}
			continue
		}
		delete(raw, f.Name)
		value, err := f.Conv.Convert(text)
		if err != nil {
			if sv, ok := err.(*SpecViolation); ok {
				sv.Aggregate = s.Tag
				sv.Field = f.Name
			}
			return nil, err
		}
		attrs[f.Name] = value
	}
	if len(raw) != 0 {
		for key := range raw {
			return nil, &SpecViolation{
				Aggregate: s.Tag,
				Field:     key,
				Kind:      ViolationUnknown,
				Reason:    "element is not declared for this aggregate",
			}
		}
	}
	for key, value := range derived {
		attrs[key] = value
	}
	return &Instance{Tag: s.Tag, attrs: attrs, lists: lists}, nil
}
