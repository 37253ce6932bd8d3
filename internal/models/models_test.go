package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
)

func TestMoneyBSONKeepsPrecision(t *testing.T) {
	in := struct {
		Fee Money `bson:"fee"`
	}{Fee: NewMoney(decimal.RequireFromString("10.10"))}

	raw, err := bson.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if v := bson.Raw(raw).Lookup("fee"); v.StringValue() != "10.1" {
		t.Fatalf("stored as %v, want string 10.1", v)
	}

	var out struct {
		Fee Money `bson:"fee"`
	}
	if err := bson.Unmarshal(raw, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !out.Fee.Equal(in.Fee.Decimal) {
		t.Fatalf("round trip %s != %s", out.Fee, in.Fee)
	}
}

func TestParseMoney(t *testing.T) {
	if _, err := ParseMoney("ten"); err == nil {
		t.Fatal("ParseMoney accepted garbage")
	}
	m, err := ParseMoney("0.30")
	if err != nil || !m.Equal(decimal.RequireFromString("0.3")) {
		t.Fatalf("ParseMoney(0.30) = %s, %v", m, err)
	}
}

func TestDisputeParticipants(t *testing.T) {
	opp := "b"
	d := &Dispute{ChallengerID: "a", OpponentID: &opp, ChallengerSide: "yes", OpponentSide: "no"}

	if !d.IsParticipant("a") || !d.IsParticipant("b") || d.IsParticipant("c") || d.IsParticipant("") {
		t.Fatal("IsParticipant wrong")
	}
	if d.OtherParticipant("a") != "b" || d.OtherParticipant("b") != "a" {
		t.Fatal("OtherParticipant wrong")
	}
	if d.SideOf("b") != "no" || d.SideOf("a") != "yes" {
		t.Fatal("SideOf wrong")
	}

	open := &Dispute{ChallengerID: "a"}
	if open.Opponent() != "" || open.IsParticipant("") {
		t.Fatal("unresolved opponent must not match the empty id")
	}

	c := d.Clone()
	*c.OpponentID = "z"
	if d.Opponent() != "b" {
		t.Fatal("Clone shares the opponent pointer")
	}
}
