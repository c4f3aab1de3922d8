package requestform

import (
	"fmt"

	"gopkg.in/yaml.v3"

	kerrors "github.com/p-blackswan/kubejit/internal/errors"
)

// Bulk is a prefill file. JSON files parse too, JSON being a subset of YAML.
// Dates are not part of the format.
type Bulk struct {
	Namespaces    []string `yaml:"namespaces"`
	Users         []string `yaml:"users"`
	Emails        []string `yaml:"emails"`
	Justification string   `yaml:"justification"`
	Cluster       string   `yaml:"cluster"`
	Role          string   `yaml:"role"`
}

// ParseBulk decodes a YAML or JSON prefill file.
func ParseBulk(data []byte) (*Bulk, error) {
	var b Bulk
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: parsing prefill file: %v", kerrors.ErrInvalidInput, err)
	}
	return &b, nil
}

// Prefill copies b into the form. Values that fail validation, including a
// cluster or role missing from the loaded options, are left out and
// reported; everything else is applied. The start and end dates are never
// touched.
func (f *Form) Prefill(b *Bulk) error {
	fe := kerrors.FieldErrors{}

	for _, ns := range b.Namespaces {
		if !f.Namespaces.Add(ns) {
			fe[FieldNamespaces] = NamespaceTagError
		}
	}
	for _, list := range [][]string{b.Users, b.Emails} {
		for _, u := range list {
			if !f.Users.Add(u) {
				fe[FieldUsers] = EmailTagError
			}
		}
	}
	if b.Justification != "" {
		if err := f.SetJustification(b.Justification); err != nil {
			fe[FieldJustification] = fmt.Sprintf("must be at most %d characters", MaxJustification)
		}
	}
	if b.Cluster != "" {
		if err := f.SelectCluster(b.Cluster); err != nil {
			fe[FieldCluster] = fmt.Sprintf("%q is not an available cluster", b.Cluster)
		}
	}
	if b.Role != "" {
		if err := f.SelectRole(b.Role); err != nil {
			fe[FieldRole] = fmt.Sprintf("%q is not an available role", b.Role)
		}
	}

	if len(fe) == 0 {
		return nil
	}
	return fe
}
