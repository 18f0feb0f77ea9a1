package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

const me = "00000000-0000-4000-8000-000000000001"

func TestPrintGrid(t *testing.T) {
	var buf bytes.Buffer
	out := &Output{format: "text", w: &buf}

	slots := make([]Slot, 12)
	for i := range slots {
		slots[i] = Slot{Number: string(rune('a' + i)), State: "free"}
	}
	slots[1] = Slot{Number: "b", State: "held", Holder: me}
	slots[2] = Slot{Number: "c", State: "held", Holder: "someone-else"}
	slots[3] = Slot{Number: "d", State: "reserved"}
	slots[4] = Slot{Number: "e", State: "paid"}

	out.printGrid(slots, me)

	assert.Equal(t,
		"[a ] [b*] [c~] [dR] [e$] [f ] [g ] [h ] [i ] [j ]\n[k ] [l ]\n",
		buf.String())
}

func TestMineOf(t *testing.T) {
	view := View{
		Identity: me,
		Slots: []Slot{
			{Number: "01", State: "held", Holder: me},
			{Number: "02", State: "held", Holder: "someone-else"},
			{Number: "03", State: "reserved"},
		},
	}

	mine := mineOf(view)
	if assert.Len(t, mine.Slots, 1) {
		assert.Equal(t, "01", mine.Slots[0].Number)
	}
}

func TestPrintJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	out := &Output{format: "json", w: &buf}

	out.Print(PaidResult{Paid: []string{"01"}, Skipped: []string{}})

	assert.JSONEq(t, `{"paid":["01"],"skipped":[]}`, buf.String())
}
