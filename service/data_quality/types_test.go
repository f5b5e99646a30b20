package data_quality

import (
	"errors"
	"testing"

	"dataquality-service/service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRuleConfig(t *testing.T) {
	tests := []struct {
		name    string
		kind    RuleKind
		raw     map[string]interface{}
		want    RuleConfig
		wantErr bool
	}{
		{"null check ignores extra keys", KindNullCheck, map[string]interface{}{"foo": 1}, NullConfig{}, false},
		{"format check", KindFormatCheck, map[string]interface{}{"pattern": "^a"}, FormatConfig{Pattern: "^a"}, false},
		{"format check without pattern", KindFormatCheck, map[string]interface{}{}, nil, true},
		{"format check with nil config", KindFormatCheck, nil, nil, true},
		{"range check both bounds", KindRangeCheck, map[string]interface{}{"min": 0, "max": "120"},
			RangeConfig{Min: floatPtr(0), Max: floatPtr(120)}, false},
		{"range check no bounds", KindRangeCheck, map[string]interface{}{}, RangeConfig{}, false},
		{"range check non numeric", KindRangeCheck, map[string]interface{}{"min": "low"}, nil, true},
		{"uniqueness check", KindUniquenessCheck, nil, UniquenessConfig{}, false},
		{"foreign key check", KindForeignKeyCheck,
			map[string]interface{}{"reference_table": "customers", "reference_column": "id"},
			ForeignKeyConfig{ReferenceTable: "customers", ReferenceColumn: "id"}, false},
		{"foreign key check missing column", KindForeignKeyCheck,
			map[string]interface{}{"reference_table": "customers"}, nil, true},
		{"unknown kind", RuleKind("pattern_check"), nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeRuleConfig(tt.kind, tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRuleFromModel(t *testing.T) {
	t.Run("valid rule", func(t *testing.T) {
		rule, err := RuleFromModel(&models.QualityRule{
			RuleID:         9,
			TargetTable:    "orders",
			TargetColumn:   "customer_id",
			RuleType:       "foreign_key_check",
			RuleConfig:     models.JSONB{"reference_table": "customers", "reference_column": "id"},
			ThresholdValue: 0,
			IsActive:       true,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(9), rule.ID)
		assert.Equal(t, KindForeignKeyCheck, rule.Kind)
		assert.Equal(t, ForeignKeyConfig{ReferenceTable: "customers", ReferenceColumn: "id"}, rule.Config)

		// 往返转换保留配置
		back := rule.ToModel()
		assert.Equal(t, "customers", back.RuleConfig["reference_table"])
	})

	t.Run("invalid config becomes configuration error", func(t *testing.T) {
		_, err := RuleFromModel(&models.QualityRule{RuleID: 4, TargetTable: "t", TargetColumn: "c", RuleType: "format_check"})
		var cfgErr *ConfigurationError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, int64(4), cfgErr.RuleID)
	})

	t.Run("threshold out of range", func(t *testing.T) {
		_, err := RuleFromModel(&models.QualityRule{RuleID: 5, TargetTable: "t", TargetColumn: "c", RuleType: "null_check", ThresholdValue: 150})
		var cfgErr *ConfigurationError
		require.True(t, errors.As(err, &cfgErr))
	})
}

func TestRuleValidateKindMismatch(t *testing.T) {
	rule := &Rule{ID: 1, Table: "t", Column: "c", Kind: KindRangeCheck, Config: NullConfig{}}
	err := rule.Validate()
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, cfgErr.Error(), "不一致")
}
