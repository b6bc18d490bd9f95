package common

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// MaxExtraProperties bounds the open side map of an entity.
const MaxExtraProperties = 16

// PersonProperties are attributes of a Person entity.
type PersonProperties struct {
	UserID     string `json:"user_id,omitempty"`
	Role       string `json:"role,omitempty"`
	Age        string `json:"age,omitempty"`
	Occupation string `json:"occupation,omitempty"`
}

// LocationProperties are attributes of a Location entity.
type LocationProperties struct {
	Region   string `json:"region,omitempty"`
	Country  string `json:"country,omitempty"`
	RiskZone string `json:"risk_zone,omitempty"`
}

// ProductProperties are attributes of a Product entity.
type ProductProperties struct {
	Category string `json:"category,omitempty"`
	Price    string `json:"price,omitempty"`
	Brand    string `json:"brand,omitempty"`
}

// RiskProperties are attributes of a Risk entity.
type RiskProperties struct {
	Category string `json:"category,omitempty"`
	Severity string `json:"severity,omitempty"`
}

// InsuranceProperties are attributes of an Insurance entity.
type InsuranceProperties struct {
	Coverage     string `json:"coverage,omitempty"`
	Insurer      string `json:"insurer,omitempty"`
	PolicyNumber string `json:"policy_number,omitempty"`
	Premium      string `json:"premium,omitempty"`
}

// OrganizationProperties are attributes of an Organization entity.
type OrganizationProperties struct {
	Industry string `json:"industry,omitempty"`
}

// EventProperties are attributes of an Event entity.
type EventProperties struct {
	Date   string `json:"date,omitempty"`
	Amount string `json:"amount,omitempty"`
}

// Properties is a tagged variant over EntityType. At most one typed field is
// set, and it always matches Kind. Extra holds up to MaxExtraProperties
// attributes the typed struct has no field for.
type Properties struct {
	Kind         EntityType
	Person       *PersonProperties
	Location     *LocationProperties
	Product      *ProductProperties
	Risk         *RiskProperties
	Insurance    *InsuranceProperties
	Organization *OrganizationProperties
	Event        *EventProperties
	Extra        map[string]string
}

// MarshalJSON encodes the flattened attribute map.
func (p Properties) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Flatten())
}

// NewProperties builds the variant for kind from a raw model map. Keys the
// typed struct knows are routed into it; the rest are stringified into
// Extra in sorted key order until the bound is reached.
func NewProperties(kind EntityType, raw map[string]any) Properties {
	p := Properties{Kind: kind}
	if len(raw) == 0 {
		return p
	}

	flat := make(map[string]string, len(raw))
	for k, v := range raw {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "" || v == nil {
			continue
		}
		flat[key] = stringify(v)
	}

	typed := p.typedFields()
	for _, k := range slices.Sorted(maps.Keys(flat)) {
		if ptr, ok := typed[k]; ok {
			*ptr = flat[k]
			continue
		}
		if len(p.Extra) >= MaxExtraProperties {
			continue
		}
		if p.Extra == nil {
			p.Extra = make(map[string]string)
		}
		p.Extra[k] = flat[k]
	}
	p.dropEmptyVariant()
	return p
}

// Merge applies other on top of p: every non-empty key of other wins. Extra
// keeps its bound; new keys past the bound are ignored.
func (p Properties) Merge(other Properties) Properties {
	if p.Kind == "" {
		p.Kind = other.Kind
	}
	out := NewProperties(p.Kind, nil)
	dst := out.typedFields()
	for k, v := range p.Values() {
		if ptr, ok := dst[k]; ok {
			*ptr = v
		}
	}
	for k, v := range other.Values() {
		if ptr, ok := dst[k]; ok && v != "" {
			*ptr = v
		}
	}

	for k, v := range p.Extra {
		out.setExtra(k, v)
	}
	for _, k := range slices.Sorted(maps.Keys(other.Extra)) {
		if _, typed := dst[k]; typed {
			continue
		}
		out.setExtra(k, other.Extra[k])
	}
	out.dropEmptyVariant()
	return out
}

// Values returns the typed attributes of the variant, without Extra.
func (p Properties) Values() map[string]string {
	out := make(map[string]string)
	for k, ptr := range p.typedFieldsReadOnly() {
		if *ptr != "" {
			out[k] = *ptr
		}
	}
	return out
}

// Flatten returns typed and extra attributes as one map. Typed keys win.
func (p Properties) Flatten() map[string]any {
	out := make(map[string]any, len(p.Extra)+4)
	for k, v := range p.Extra {
		out[k] = v
	}
	for k, v := range p.Values() {
		out[k] = v
	}
	return out
}

// Get looks up a typed or extra attribute.
func (p Properties) Get(key string) (string, bool) {
	if v, ok := p.Values()[key]; ok {
		return v, true
	}
	v, ok := p.Extra[key]
	return v, ok
}

// Empty reports whether no attribute is set.
func (p Properties) Empty() bool {
	return len(p.Extra) == 0 && len(p.Values()) == 0
}

func (p *Properties) setExtra(k, v string) {
	if _, exists := p.Extra[k]; !exists && len(p.Extra) >= MaxExtraProperties {
		return
	}
	if p.Extra == nil {
		p.Extra = make(map[string]string)
	}
	p.Extra[k] = v
}

func (p *Properties) dropEmptyVariant() {
	if len(p.Values()) > 0 {
		return
	}
	p.Person, p.Location, p.Product, p.Risk = nil, nil, nil, nil
	p.Insurance, p.Organization, p.Event = nil, nil, nil
}

// typedFields allocates the variant for Kind and returns pointers to its
// fields keyed by their JSON name.
func (p *Properties) typedFields() map[string]*string {
	switch p.Kind {
	case EntityPerson:
		if p.Person == nil {
			p.Person = &PersonProperties{}
		}
	case EntityLocation:
		if p.Location == nil {
			p.Location = &LocationProperties{}
		}
	case EntityProduct:
		if p.Product == nil {
			p.Product = &ProductProperties{}
		}
	case EntityRisk:
		if p.Risk == nil {
			p.Risk = &RiskProperties{}
		}
	case EntityInsurance:
		if p.Insurance == nil {
			p.Insurance = &InsuranceProperties{}
		}
	case EntityOrganization:
		if p.Organization == nil {
			p.Organization = &OrganizationProperties{}
		}
	case EntityEvent:
		if p.Event == nil {
			p.Event = &EventProperties{}
		}
	}
	return p.typedFieldsReadOnly()
}

func (p *Properties) typedFieldsReadOnly() map[string]*string {
	switch {
	case p.Kind == EntityPerson && p.Person != nil:
		v := p.Person
		return map[string]*string{"user_id": &v.UserID, "role": &v.Role, "age": &v.Age, "occupation": &v.Occupation}
	case p.Kind == EntityLocation && p.Location != nil:
		v := p.Location
		return map[string]*string{"region": &v.Region, "country": &v.Country, "risk_zone": &v.RiskZone}
	case p.Kind == EntityProduct && p.Product != nil:
		v := p.Product
		return map[string]*string{"category": &v.Category, "price": &v.Price, "brand": &v.Brand}
	case p.Kind == EntityRisk && p.Risk != nil:
		v := p.Risk
		return map[string]*string{"category": &v.Category, "severity": &v.Severity}
	case p.Kind == EntityInsurance && p.Insurance != nil:
		v := p.Insurance
		return map[string]*string{"coverage": &v.Coverage, "insurer": &v.Insurer, "policy_number": &v.PolicyNumber, "premium": &v.Premium}
	case p.Kind == EntityOrganization && p.Organization != nil:
		v := p.Organization
		return map[string]*string{"industry": &v.Industry}
	case p.Kind == EntityEvent && p.Event != nil:
		v := p.Event
		return map[string]*string{"date": &v.Date, "amount": &v.Amount}
	}
	return map[string]*string{}
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	case bool, int, int64:
		return fmt.Sprint(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}
