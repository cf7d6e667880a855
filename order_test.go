// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipfile

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSortItems(t *testing.T) {
	items := []*Item{
		{path: "b.txt", uncompressedSize: 30},
		{path: "dir/"},
		{path: "a.txt", uncompressedSize: 10},
		{path: "c.txt", uncompressedSize: 10},
		{path: "dir/d.txt", uncompressedSize: 20},
	}

	tests := []struct {
		order ItemOrder
		want  []string
	}{
		{OrderDefault, []string{"b.txt", "dir/", "a.txt", "c.txt", "dir/d.txt"}},
		{OrderDirsFirst, []string{"dir/", "b.txt", "a.txt", "c.txt", "dir/d.txt"}},
		{OrderAlphabetical, []string{"a.txt", "b.txt", "c.txt", "dir/", "dir/d.txt"}},
		{OrderSizeAscending, []string{"dir/", "a.txt", "c.txt", "dir/d.txt", "b.txt"}},
		{OrderSizeDescending, []string{"b.txt", "dir/d.txt", "a.txt", "c.txt", "dir/"}},
	}

	for _, tt := range tests {
		sorted := SortItems(items, tt.order)
		var got []string
		for _, it := range sorted {
			got = append(got, it.path)
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("order %d (-want +got):\n%s", tt.order, diff)
		}
	}

	if items[0].path != "b.txt" || items[2].path != "a.txt" {
		t.Error("SortItems modified its input")
	}
}
