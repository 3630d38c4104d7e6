package transform

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	t.Run("round trips every layout", func(t *testing.T) {
		dates := []time.Time{
			time.Date(2025, time.August, 15, 0, 0, 0, 0, time.UTC),
			time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC),
			time.Date(2023, time.January, 28, 0, 0, 0, 0, time.UTC),
		}
		for _, layout := range DateLayouts {
			for _, d := range dates {
				formatted := d.Format(layout)
				got, ok := ParseDate(formatted)
				require.True(t, ok, "layout %q value %q", layout, formatted)
				assert.True(t, got.Equal(d), "layout %q value %q parsed as %s", layout, formatted, got)
			}
		}
	})

	t.Run("accepts zero padded and case variants", func(t *testing.T) {
		want := time.Date(2025, time.August, 5, 0, 0, 0, 0, time.UTC)
		for _, s := range []string{"05-Aug-2025", "5-AUG-2025", "05/08/2025", "2025-08-05", "05-08-2025", "05.08.2025", " 05-Aug-2025 "} {
			got, ok := ParseDate(s)
			require.True(t, ok, s)
			assert.True(t, got.Equal(want), s)
		}
	})

	t.Run("ambiguous value reads day first", func(t *testing.T) {
		got, ok := ParseDate("03/04/2025")
		require.True(t, ok)
		assert.Equal(t, time.April, got.Month())
		assert.Equal(t, 3, got.Day())
	})

	t.Run("month first when day first is impossible", func(t *testing.T) {
		got, ok := ParseDate("08/15/2025")
		require.True(t, ok)
		assert.Equal(t, time.August, got.Month())
		assert.Equal(t, 15, got.Day())
	})

	t.Run("unparsable returns false", func(t *testing.T) {
		for _, s := range []string{"", "   ", "not a date", "32-Jan-2025", "2025/13/45"} {
			_, ok := ParseDate(s)
			assert.False(t, ok, s)
		}
	})
}

func TestSafeNumber(t *testing.T) {
	def := decimal.NewFromInt(-1)

	t.Run("strips thousands separators", func(t *testing.T) {
		got := SafeNumber("17,999.00", def, 2)
		assert.True(t, got.Equal(decimal.NewFromInt(17999)), got.String())
	})

	t.Run("strips currency glyphs and whitespace", func(t *testing.T) {
		assert.True(t, SafeNumber("₹ 1,20,000.50", def, 2).Equal(decimal.RequireFromString("120000.50")))
		assert.True(t, SafeNumber("$12.5", def, 2).Equal(decimal.RequireFromString("12.5")))
		assert.True(t, SafeNumber("€ 7", def, 2).Equal(decimal.NewFromInt(7)))
	})

	t.Run("rounds to precision", func(t *testing.T) {
		assert.Equal(t, "1.24", SafeNumber("1.2351", def, 2).StringFixed(2))
		assert.Equal(t, "1.235", SafeNumber("1.2351", def, 3).StringFixed(3))
	})

	t.Run("returns default on empty or garbage", func(t *testing.T) {
		assert.True(t, SafeNumber("", def, 2).Equal(def))
		assert.True(t, SafeNumber("abc", def, 2).Equal(def))
		assert.True(t, SafeNumber("18%", def, 2).Equal(def))
	})

	t.Run("shorthands default to zero", func(t *testing.T) {
		assert.True(t, SafeAmount("").IsZero())
		assert.True(t, SafeQuantity("2.5").Equal(decimal.RequireFromString("2.5")))
	})
}

func TestExtractFirst(t *testing.T) {
	assert.Equal(t, "", ExtractFirst(nil))
	assert.Equal(t, "", ExtractFirst([]string{}))
	assert.Equal(t, "INV-1", ExtractFirst([]string{"  INV-1 ", "INV-2"}))
	assert.Equal(t, "", ExtractFirst([]string{"   "}))
}

func TestCleanString(t *testing.T) {
	t.Run("collapses whitespace", func(t *testing.T) {
		assert.Equal(t, "Dell UltraSharp 27", CleanString("  Dell\t UltraSharp\n\n27  ", 0))
	})

	t.Run("truncates by rune", func(t *testing.T) {
		assert.Equal(t, "Dell", CleanString("Dell UltraSharp", 5))
		assert.Equal(t, "₹₹", CleanString("₹₹₹", 2))
	})

	t.Run("composes combining marks", func(t *testing.T) {
		assert.Equal(t, "Caf\u00e9 Cr\u00e8me", CleanString("Cafe\u0301 Cre\u0300me", 0))
		assert.Equal(t, CleanString("caf\u00e9", 0), CleanString("cafe\u0301", 0))
	})

	t.Run("keeps compatibility characters", func(t *testing.T) {
		assert.Equal(t, "Pipe ½ inch", CleanString("Pipe ½  inch", 0))
		assert.Equal(t, "ＡＢＣ １", CleanString("ＡＢＣ　１", 0))
	})

	t.Run("empty stays empty", func(t *testing.T) {
		assert.Equal(t, "", CleanString("", 10))
		assert.Equal(t, "", CleanString(" \t ", 10))
	})
}

func TestCalculateExpectedDelivery(t *testing.T) {
	po := time.Date(2025, time.August, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, time.August, 29, 0, 0, 0, 0, time.UTC), CalculateExpectedDelivery(po, DefaultLeadDays))
	assert.Equal(t, po, CalculateExpectedDelivery(po, 0))
}
