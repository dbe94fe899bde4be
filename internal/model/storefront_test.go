package model

import (
	"encoding/json"
	"testing"
)

func TestCartResponse_PopulatedAndBareProducts(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantID    string
		wantTitle string
	}{
		{
			name:      "populated product from GET /cart",
			body:      `{"numOfCartItems":1,"cartId":"c1","data":{"_id":"c1","products":[{"count":2,"price":100,"product":{"_id":"p1","title":"Mug"}}],"totalCartPrice":200}}`,
			wantID:    "p1",
			wantTitle: "Mug",
		},
		{
			name:   "bare id from POST /cart",
			body:   `{"numOfCartItems":1,"data":{"_id":"c1","products":[{"count":2,"price":100,"product":"p1"}],"totalCartPrice":200}}`,
			wantID: "p1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp CartResponse
			if err := json.Unmarshal([]byte(tt.body), &resp); err != nil {
				t.Fatalf("Unmarshal error: %v", err)
			}
			if resp.ID() != "c1" {
				t.Errorf("ID() = %q, want c1", resp.ID())
			}
			line := resp.Data.Products[0]
			if line.Product.ID != tt.wantID {
				t.Errorf("product id = %q, want %q", line.Product.ID, tt.wantID)
			}
			if line.Price != 10000 {
				t.Errorf("price = %d, want 10000", line.Price)
			}
			if tt.wantTitle != "" && (line.Product.Product == nil || line.Product.Product.Title != tt.wantTitle) {
				t.Errorf("product title not decoded")
			}
		})
	}
}

func TestProductRef_RejectsNumbers(t *testing.T) {
	var ref ProductRef
	if err := json.Unmarshal([]byte(`42`), &ref); err == nil {
		t.Error("expected error for numeric product ref")
	}
}

func TestProduct_KeyAndEffectivePrice(t *testing.T) {
	p := Product{RefID: "p9", Price: 20000, PriceAfterDiscount: 15000}
	if p.Key() != "p9" {
		t.Errorf("Key() = %q, want p9", p.Key())
	}
	if p.EffectivePrice() != 15000 {
		t.Errorf("EffectivePrice() = %d, want 15000", p.EffectivePrice())
	}

	p.PriceAfterDiscount = 0
	if p.EffectivePrice() != 20000 {
		t.Errorf("EffectivePrice() = %d, want 20000", p.EffectivePrice())
	}
}

func TestDecodeList(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantLen int
		wantOK  bool
	}{
		{"bare array", `[{"_id":"a"},{"_id":"b"}]`, 2, true},
		{"envelope", `{"results":2,"data":[{"_id":"a"},{"_id":"b"}]}`, 2, true},
		{"empty envelope", `{"data":[]}`, 0, true},
		{"object data", `{"data":{"_id":"a"}}`, 0, false},
		{"error body", `{"message":"fail"}`, 0, false},
		{"empty", ``, 0, false},
		{"garbage", `<html>`, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, ok := DecodeList[Category]([]byte(tt.body))
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if len(items) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(items), tt.wantLen)
			}
		})
	}
}

func TestDecodeItem(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		wantID string
		wantOK bool
	}{
		{"envelope", `{"data":{"_id":"b1","name":"Acme"}}`, "b1", true},
		{"direct", `{"_id":"b1","name":"Acme"}`, "b1", true},
		{"array", `[{"_id":"b1"}]`, "", false},
		{"empty", ``, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item, ok := DecodeItem[Brand]([]byte(tt.body))
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && item.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", item.ID, tt.wantID)
			}
		})
	}
}

func TestMessage(t *testing.T) {
	if got := Message([]byte(`{"message":"Incorrect email or password"}`)); got != "Incorrect email or password" {
		t.Errorf("Message() = %q", got)
	}
	if got := Message([]byte(`not json`)); got != "" {
		t.Errorf("Message() = %q, want empty", got)
	}
}
