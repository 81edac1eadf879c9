package codec

import "testing"

type samplePayload struct {
	Name  string
	Count int
}

func TestMsgPackRoundtrip(t *testing.T) {
	in := samplePayload{Name: "actor", Count: 7}
	out, err := Roundtrip(MsgPack, in)
	if err != nil {
		t.Fatalf("Roundtrip error: %v", err)
	}
	if out != in {
		t.Fatalf("Roundtrip = %+v, want %+v", out, in)
	}
}

func TestJSONRoundtrip(t *testing.T) {
	in := samplePayload{Name: "actor", Count: 7}
	out, err := Roundtrip(JSON, in)
	if err != nil {
		t.Fatalf("Roundtrip error: %v", err)
	}
	if out != in {
		t.Fatalf("Roundtrip = %+v, want %+v", out, in)
	}
}

func TestDefaultDispatchesNonProtoToMsgPack(t *testing.T) {
	in := samplePayload{Name: "x", Count: 1}
	data, err := Default.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var got samplePayload
	if err := MsgPack.Unmarshal(data, &got); err != nil {
		t.Fatalf("expected Default to have used msgpack framing: %v", err)
	}
	if got != in {
		t.Fatalf("got %+v, want %+v", got, in)
	}
}

func TestPBMarshalRejectsNonProtoMessage(t *testing.T) {
	if _, err := PB.Marshal(samplePayload{}); err != ErrNotPBMessage {
		t.Fatalf("Marshal(non-proto) error = %v, want %v", err, ErrNotPBMessage)
	}
}
