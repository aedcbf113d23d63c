package passive

import (
	"fmt"

	"github.com/MrAsimZahid/zakat-calculator/internal/domain"
)

// Recognized persisted version tags.
const (
	versionTagV1 = "1.0"
	versionTagV2 = domain.PassiveSchemaVersion
)

// schemaVersion is the closed set of persisted shapes. Each variant carries its
// own migration, so adding a variant without a migration does not compile.
type schemaVersion interface {
	tag() string
	migrate(m *Migrator, raw map[string]interface{}) (*domain.PassiveInvestmentState, error)
}

// unversionedSchema is the oldest shape: no version field at all.
type unversionedSchema struct{}

// v1Schema is the version "1.0" shape.
type v1Schema struct{}

// v2Schema is the canonical version "2.0" shape. It is re-validated on every pass.
type v2Schema struct{}

// unrecognizedSchema is any other version tag.
type unrecognizedSchema struct {
	value interface{}
}

func (unversionedSchema) tag() string { return "unversioned" }
func (v1Schema) tag() string          { return versionTagV1 }
func (v2Schema) tag() string          { return versionTagV2 }
func (u unrecognizedSchema) tag() string {
	return fmt.Sprintf("unrecognized(%v)", u.value)
}

func (unversionedSchema) migrate(m *Migrator, raw map[string]interface{}) (*domain.PassiveInvestmentState, error) {
	return m.sanitize(raw, legacyPolicy), nil
}

func (v1Schema) migrate(m *Migrator, raw map[string]interface{}) (*domain.PassiveInvestmentState, error) {
	return m.sanitize(raw, legacyPolicy), nil
}

func (v2Schema) migrate(m *Migrator, raw map[string]interface{}) (*domain.PassiveInvestmentState, error) {
	return m.sanitize(raw, canonicalPolicy), nil
}

func (u unrecognizedSchema) migrate(*Migrator, map[string]interface{}) (*domain.PassiveInvestmentState, error) {
	return nil, &domain.MigrationError{Version: u.value, Reason: "unrecognized version"}
}

// classifyVersion maps the raw version field onto a schema variant. A missing,
// null or empty version is treated as the unversioned shape.
func classifyVersion(raw map[string]interface{}) schemaVersion {
	v, ok := raw["version"]
	if !ok || v == nil {
		return unversionedSchema{}
	}
	tag, isString := v.(string)
	if !isString {
		return unrecognizedSchema{value: v}
	}
	switch tag {
	case "":
		return unversionedSchema{}
	case versionTagV1:
		return v1Schema{}
	case versionTagV2:
		return v2Schema{}
	default:
		return unrecognizedSchema{value: tag}
	}
}

// sanitizePolicy controls which stored fields survive a migration pass.
type sanitizePolicy struct {
	preserveHawl     bool
	preserveCurrency bool
}

var (
	legacyPolicy    = sanitizePolicy{}
	canonicalPolicy = sanitizePolicy{preserveHawl: true, preserveCurrency: true}
)
