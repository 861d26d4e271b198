package tests

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typebin/typebin-go/pkg/typebin"
)

type order struct {
	ID    int64
	Items []lineItem
	Note  *string
}

type lineItem struct {
	SKU string
	Qty int32
}

func TestStructPipeline(t *testing.T) {
	note := "rush"
	in := order{
		ID:    42,
		Items: []lineItem{{SKU: "a-1", Qty: 2}, {SKU: "b-9", Qty: 1}},
		Note:  &note,
	}

	v, err := typebin.ValueOf(in)
	require.Nil(t, err)
	assert.Equal(t, "t3Ilt2sios", v.Type())

	// The bytes survive a trip through raw form and back into a struct.
	raw, rerr := typebin.FromRaw(v.Type(), v.Bytes())
	require.Nil(t, rerr)
	out, gerr := typebin.GetAs[order](raw, typebin.None)
	require.Nil(t, gerr)
	assert.Equal(t, in, out)
}

func TestRegisterThenUse(t *testing.T) {
	info, err := typebin.Register(order{})
	require.Nil(t, err)
	assert.Equal(t, "t3Ilt2sios", info.Type)
}

func TestConversionPipeline(t *testing.T) {
	v, err := typebin.ValueOf([]int32{100, 200, 300})
	require.Nil(t, err)

	wide, cerr := v.ConvertTo("lI", typebin.Ints)
	require.Nil(t, cerr)
	ints, gerr := typebin.GetAs[[]int64](wide, typebin.None)
	require.Nil(t, gerr)
	assert.Equal(t, []int64{100, 200, 300}, ints)

	// Narrowing back restores the original bytes on these values.
	back, cerr := wide.ConvertTo("li", typebin.Ints|typebin.IntsNarrowing)
	require.Nil(t, cerr)
	assert.True(t, v.Equal(back))
	assert.Equal(t, v.Fingerprint(), back.Fingerprint())
}

func TestPredicateAgreesWithConversion(t *testing.T) {
	v, err := typebin.ValueOf(int32(70000))
	require.Nil(t, err)

	require.Nil(t, v.CanConvertTo("I", typebin.Ints))
	_, cerr := v.ConvertTo("I", typebin.Ints)
	assert.Nil(t, cerr)

	refusal := v.CanConvertTo("s", typebin.All)
	require.NotNil(t, refusal)
	_, cerr = v.ConvertTo("s", typebin.All)
	assert.NotNil(t, cerr)
}

func TestFallibleCollection(t *testing.T) {
	results := []typebin.FallibleValue{
		typebin.OK(int32(1)),
		typebin.FailedAs("i", typebin.ErrorRecord{Category: "net", Message: "timeout"}),
		typebin.OK(int32(3)),
	}
	v, err := typebin.ValueOf(results)
	require.Nil(t, err)
	require.Equal(t, "lxi", v.Type())

	plain, recs, cerr := v.ConvertCollect("li", typebin.Fallible)
	require.Nil(t, cerr)
	require.Len(t, recs, 1)
	assert.Equal(t, "timeout", recs[0].Message)

	ints, gerr := typebin.GetAs[[]int32](plain, typebin.None)
	require.Nil(t, gerr)
	// The failed slot carries the default value; the collector has the error.
	assert.Equal(t, []int32{1, 0, 3}, ints)
}

func TestDynamicTransport(t *testing.T) {
	// A heterogeneous batch travels as a list of dynamic values and each
	// entry recovers its own type on the far side.
	batch := []any{int32(5), "hello", []int32{1, 2}}
	v, err := typebin.ValueOf(batch)
	require.Nil(t, err)
	require.Equal(t, "la", v.Type())

	boxes, gerr := typebin.GetAs[[]typebin.Dyn](v, typebin.None)
	require.Nil(t, gerr)
	require.Len(t, boxes, 3)
	assert.Equal(t, []string{"i", "s", "li"}, []string{boxes[0].Type, boxes[1].Type, boxes[2].Type})

	first, ferr := typebin.FromRaw(boxes[0].Type, boxes[0].Data)
	require.Nil(t, ferr)
	n, nerr := typebin.GetAs[int32](first, typebin.None)
	require.Nil(t, nerr)
	assert.Equal(t, int32(5), n)
}

func TestWrapUnwrapDepth(t *testing.T) {
	v, err := typebin.ValueOf("payload")
	require.Nil(t, err)
	double := v.Wrap().Wrap()
	require.Equal(t, "a", double.Type())

	inner, uerr := double.Unwrap()
	require.Nil(t, uerr)
	inner, uerr = inner.Unwrap()
	require.Nil(t, uerr)
	assert.True(t, v.Equal(inner))
}

func TestTextRoundTripThroughWire(t *testing.T) {
	v, err := typebin.Parse(`{"alpha":[1;2];"beta":[3]}`)
	require.Nil(t, err)
	assert.Equal(t, "msli", v.Type())

	text, perr := typebin.PrintChecked(v.View(), typebin.Options{WithType: true})
	require.Nil(t, perr)
	again, err := typebin.Parse(text)
	require.Nil(t, err)
	assert.True(t, v.Wrap().Equal(again))
}

func TestErrorOffsetsPointAtTheProblem(t *testing.T) {
	err := typebin.CheckType("lt2ic!")
	require.NotNil(t, err)
	assert.Equal(t, typebin.BadTypestring, err.Kind)
	assert.Equal(t, "lt2ic*!", err.MarkSource())

	v, verr := typebin.ValueOf(int32(1))
	require.Nil(t, verr)
	cerr := v.CanConvertTo("b", typebin.None)
	require.NotNil(t, cerr)
	assert.Equal(t, "*i", cerr.MarkSource())
	assert.Equal(t, "*b", cerr.MarkTarget())
}

func TestForeignBytesAreRejected(t *testing.T) {
	_, err := typebin.FromRaw("li", []byte{0, 0, 0, 2, 0, 0, 0, 1})
	require.NotNil(t, err)
	assert.Equal(t, typebin.ValueMismatch, err.Kind)

	vw := typebin.ViewOf("s", []byte{0, 0, 0, 200, 'x'})
	assert.NotNil(t, vw.Validate())
}
