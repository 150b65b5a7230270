package model

import (
	"encoding/json"
	"testing"
)

func TestEnvelope_DecodeData(t *testing.T) {
	raw := `{"success":true,"data":{"detections":[{"bbox":[1,2,3,4],"confidence":0.9,"class":"塔吊","category":"垂直运输机械","color":[128,0,128]}],"class_counts":{"垂直运输机械":{"count":1,"items":["塔吊"]}},"message":"检测成功"}}`

	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if !env.Success || !env.HasData() {
		t.Fatalf("expected successful envelope with data, got %+v", env)
	}

	var res DetectResult
	if err := env.DecodeData(&res); err != nil {
		t.Fatalf("DecodeData: %v", err)
	}
	if len(res.Detections) != 1 {
		t.Fatalf("expected 1 detection, got %d", len(res.Detections))
	}
	if res.Detections[0].BBox != [4]int{1, 2, 3, 4} {
		t.Errorf("unexpected bbox %v", res.Detections[0].BBox)
	}
	if res.ClassCounts["垂直运输机械"].Count != 1 {
		t.Errorf("unexpected class counts %+v", res.ClassCounts)
	}
}

func TestEnvelope_NullData(t *testing.T) {
	var env Envelope
	if err := json.Unmarshal([]byte(`{"success":true,"data":null}`), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.HasData() {
		t.Error("null data should not count as data")
	}

	var st ModelStatus
	if err := env.DecodeData(&st); err != nil {
		t.Errorf("DecodeData on null: %v", err)
	}
}
