package tabular

import (
	"bytes"
	"testing"

	"github.com/rpattn/shopsync/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeCSVQuotesOnlyWhenNeeded(t *testing.T) {
	columns := []string{"variant_id", "attribute_custom_note"}
	rows := []domain.Row{
		{"variant_id": "1", "attribute_custom_note": `a,"b"`},
		{"variant_id": "2", "attribute_custom_note": "plain"},
	}

	got := EncodeCSV(columns, rows)

	assert.Equal(t, "variant_id,attribute_custom_note\n1,\"a,\"\"b\"\"\"\n2,plain", got)
}

func TestCSVRoundTrip(t *testing.T) {
	columns := []string{"product_id", "variant_id", "attribute_custom_care", "attribute_custom_size"}
	rows := []domain.Row{
		{"product_id": "gid://shopify/Product/1", "variant_id": "gid://shopify/ProductVariant/11", "attribute_custom_care": "Wash cold,\nhang dry", "attribute_custom_size": ""},
		{"product_id": "gid://shopify/Product/1", "variant_id": "gid://shopify/ProductVariant/12", "attribute_custom_care": `He said "hi"`, "attribute_custom_size": " M "},
		{"product_id": "gid://shopify/Product/2", "variant_id": "gid://shopify/ProductVariant/21", "attribute_custom_care": "", "attribute_custom_size": "L"},
		{"product_id": "gid://shopify/Product/2", "variant_id": "gid://shopify/ProductVariant/22", "attribute_custom_care": "line one\r\nline two", "attribute_custom_size": "a\rb"},
	}

	table, err := DecodeCSV([]byte(EncodeCSV(columns, rows)))
	require.NoError(t, err)

	assert.Equal(t, columns, table.Columns)
	assert.Equal(t, rows, table.Rows)
	assert.Zero(t, table.Dropped)
	assert.Equal(t, []int{2, 4, 5, 6}, table.Lines)
}

func TestDecodeCSVKeepsQuotedCarriageReturns(t *testing.T) {
	payload := "variant_id,attribute_custom_care\r\n1,\"wash\r\ncold\"\r\n2,\"say \"\"hi\"\"\r\n\"\r\n3,plain\r\n"

	table, err := DecodeCSV([]byte(payload))
	require.NoError(t, err)

	assert.Equal(t, []string{"variant_id", "attribute_custom_care"}, table.Columns)
	require.Len(t, table.Rows, 3)
	assert.Equal(t, "wash\r\ncold", table.Rows[0]["attribute_custom_care"])
	assert.Equal(t, "say \"hi\"\r\n", table.Rows[1]["attribute_custom_care"])
	assert.Equal(t, "plain", table.Rows[2]["attribute_custom_care"])
}

func TestDecodeCSVDropsMismatchedRecords(t *testing.T) {
	payload := "variant_id,attribute_custom_size\n1,S\n2,M,extra\n\n3\n4,L\n"

	table, err := DecodeCSV([]byte(payload))
	require.NoError(t, err)

	require.Len(t, table.Rows, 2)
	assert.Equal(t, "1", table.Rows[0]["variant_id"])
	assert.Equal(t, "4", table.Rows[1]["variant_id"])
	assert.Equal(t, 2, table.Dropped)
	assert.Len(t, table.Warnings, 2)
	assert.Contains(t, table.Warnings[0], "line 3 dropped")
}

func TestDecodeCSVHeaderCleanup(t *testing.T) {
	payload := append([]byte{0xEF, 0xBB, 0xBF}, []byte("\" variant_id \",attribute_custom_size\r\n1,S\r\n")...)

	table, err := DecodeCSV(payload)
	require.NoError(t, err)

	assert.Equal(t, []string{"variant_id", "attribute_custom_size"}, table.Columns)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "S", table.Rows[0]["attribute_custom_size"])
}

func TestDecodeCSVRejectsMissingHeader(t *testing.T) {
	_, err := DecodeCSV([]byte(""))
	assert.ErrorIs(t, err, ErrMissingHeader)

	_, err = DecodeCSV([]byte(",,\n1,2,3"))
	assert.ErrorIs(t, err, ErrMissingHeader)
}

func TestWriteCSVMatchesEncode(t *testing.T) {
	columns := []string{"variant_id"}
	rows := []domain.Row{{"variant_id": "1"}}
	var buf bytes.Buffer

	require.NoError(t, WriteCSV(&buf, columns, rows))
	assert.Equal(t, EncodeCSV(columns, rows), buf.String())
}

func TestDecodeSelectsFormatByExtension(t *testing.T) {
	_, err := Decode("variants.txt", []byte("variant_id\n1"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	table, err := Decode("VARIANTS.CSV", []byte("variant_id\n1"))
	require.NoError(t, err)
	assert.Len(t, table.Rows, 1)
}
