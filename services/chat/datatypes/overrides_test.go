// Copyright (C) 2026 Copperline AI (oss@copperline.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "testing"

func TestRetrievalModeSelection(t *testing.T) {
	tests := []struct {
		mode       string
		wantText   bool
		wantVector bool
	}{
		{RetrievalModeText, true, false},
		{RetrievalModeVectors, false, true},
		{RetrievalModeHybrid, true, true},
		{"", true, true},
	}
	for _, tt := range tests {
		o := Overrides{RetrievalMode: tt.mode}
		if got := o.HasTextSearch(); got != tt.wantText {
			t.Errorf("mode %q: HasTextSearch = %v, want %v", tt.mode, got, tt.wantText)
		}
		if got := o.HasVectorSearch(); got != tt.wantVector {
			t.Errorf("mode %q: HasVectorSearch = %v, want %v", tt.mode, got, tt.wantVector)
		}
	}
}

func TestTopOrDefault(t *testing.T) {
	if got := (Overrides{}).TopOrDefault(); got != 3 {
		t.Errorf("default top = %d, want 3", got)
	}
	if got := (Overrides{Top: 7}).TopOrDefault(); got != 7 {
		t.Errorf("top = %d, want 7", got)
	}
}
