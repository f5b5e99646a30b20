package data_quality

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfilerProfile(t *testing.T) {
	source, factory := newTestSource(t)
	factory.CreateSampleSchema()
	rows := []struct {
		name  interface{}
		email interface{}
		age   interface{}
	}{
		{"Alice", "alice@example.com", 20},
		{"Bob", "", 30},
		{nil, "bob@example.com", 40},
		{"Carol", "bob@example.com", nil},
	}
	for i, r := range rows {
		factory.Exec("INSERT INTO customers (id, name, email, age, created_date) VALUES (?, ?, ?, ?, ?)",
			i+1, r.name, r.email, r.age, "2024-01-01")
	}

	profiles, err := NewProfiler(source).Profile(context.Background(), "customers")
	require.NoError(t, err)

	names := make([]string, 0, len(profiles))
	byName := make(map[string]ColumnProfile)
	for _, p := range profiles {
		names = append(names, p.Column)
		byName[p.Column] = p
	}
	assert.Equal(t, []string{"id", "name", "email", "phone", "age", "country", "created_date"}, names)

	t.Run("integer column", func(t *testing.T) {
		age := byName["age"]
		assert.Equal(t, TypeClassInteger, age.TypeClass)
		assert.Equal(t, int64(4), age.TotalCount)
		assert.Equal(t, int64(1), age.NullCount)
		assert.Equal(t, int64(3), age.DistinctCount)
		assert.Equal(t, 25.0, age.NullPercentage)
		require.NotNil(t, age.MinValue)
		require.NotNil(t, age.MaxValue)
		require.NotNil(t, age.AvgValue)
		require.NotNil(t, age.StdDev)
		assert.Equal(t, 20.0, *age.MinValue)
		assert.Equal(t, 40.0, *age.MaxValue)
		assert.Equal(t, 30.0, *age.AvgValue)
		assert.InDelta(t, math.Sqrt(200.0/3.0), *age.StdDev, 1e-9)
	})

	t.Run("text column uses lengths", func(t *testing.T) {
		email := byName["email"]
		assert.Equal(t, TypeClassText, email.TypeClass)
		// 空字符串按空值计
		assert.Equal(t, int64(1), email.NullCount)
		assert.Equal(t, int64(2), email.DistinctCount)
		require.NotNil(t, email.MinValue)
		assert.Equal(t, 0.0, *email.MinValue)
		assert.Equal(t, 17.0, *email.MaxValue)
		assert.Nil(t, email.StdDev)
	})

	t.Run("other type has no statistics", func(t *testing.T) {
		created := byName["created_date"]
		assert.Equal(t, TypeClassOther, created.TypeClass)
		assert.Equal(t, int64(0), created.NullCount)
		assert.Nil(t, created.MinValue)
		assert.Nil(t, created.MaxValue)
		assert.Nil(t, created.AvgValue)
		assert.Nil(t, created.StdDev)
	})

	t.Run("all null column", func(t *testing.T) {
		phone := byName["phone"]
		assert.Equal(t, int64(4), phone.NullCount)
		assert.Equal(t, int64(0), phone.DistinctCount)
		assert.Nil(t, phone.MinValue)
	})

	for _, p := range profiles {
		assert.LessOrEqual(t, p.NullCount, p.TotalCount, p.Column)
		assert.LessOrEqual(t, p.DistinctCount, p.TotalCount-p.NullCount, p.Column)
	}
}

func TestProfilerIsIdempotent(t *testing.T) {
	source, factory := newTestSource(t)
	factory.CreateValuesTable("measurements", "REAL", 1.5, 2.25, 3.125, nil, 10.0)

	profiler := NewProfiler(source)
	first, err := profiler.Profile(context.Background(), "measurements")
	require.NoError(t, err)
	second, err := profiler.Profile(context.Background(), "measurements")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	v := first[1]
	assert.Equal(t, TypeClassReal, v.TypeClass)
	require.NotNil(t, v.StdDev)
	assert.GreaterOrEqual(t, *v.StdDev, 0.0)
}

func TestProfilerSingleValueHasZeroStdDev(t *testing.T) {
	source, factory := newTestSource(t)
	factory.CreateValuesTable("single", "INTEGER", 7)

	profiles, err := NewProfiler(source).Profile(context.Background(), "single")
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	require.NotNil(t, profiles[1].StdDev)
	assert.Equal(t, 0.0, *profiles[1].StdDev)
}

func TestProfilerMixedAffinityColumn(t *testing.T) {
	source, factory := newTestSource(t)
	// SQLite 允许整数列中存入文本
	factory.CreateValuesTable("mixed", "INTEGER", 1, 2, "abc")

	profiles, err := NewProfiler(source).Profile(context.Background(), "mixed")
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	v := profiles[1]
	assert.Equal(t, TypeClassInteger, v.TypeClass)
	assert.Equal(t, int64(0), v.NullCount)
	assert.Equal(t, int64(3), v.DistinctCount)
	require.NotNil(t, v.MinValue)
	require.NotNil(t, v.MaxValue)
	require.NotNil(t, v.AvgValue)
	require.NotNil(t, v.StdDev)
	// 文本值转换为 0，极值、均值和标准差基于同一组数值 {0,1,2}
	assert.Equal(t, 0.0, *v.MinValue)
	assert.Equal(t, 2.0, *v.MaxValue)
	assert.Equal(t, 1.0, *v.AvgValue)
	assert.InDelta(t, math.Sqrt(2.0/3.0), *v.StdDev, 1e-9)
}

func TestProfilerUnknownTable(t *testing.T) {
	source, _ := newTestSource(t)
	_, err := NewProfiler(source).Profile(context.Background(), "no_such_table")
	assert.ErrorIs(t, err, ErrIdentifierNotAllowed)
}

func TestClassifyType(t *testing.T) {
	tests := []struct {
		declared string
		want     TypeClass
	}{
		{"INTEGER", TypeClassInteger},
		{"bigint", TypeClassInteger},
		{"int4", TypeClassInteger},
		{"REAL", TypeClassReal},
		{"DECIMAL(10,2)", TypeClassReal},
		{"numeric", TypeClassReal},
		{"double precision", TypeClassReal},
		{"TEXT", TypeClassText},
		{"VARCHAR(255)", TypeClassText},
		{"bpchar", TypeClassText},
		{"DATE", TypeClassOther},
		{"interval", TypeClassOther},
		{"point", TypeClassOther},
		{"", TypeClassOther},
	}

	for _, tt := range tests {
		t.Run(tt.declared, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyType(tt.declared))
		})
	}
}
