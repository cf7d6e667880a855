// Copyright 2025 Lemon4ksan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zipfile

import (
	"cmp"
	"slices"
)

// ItemOrder defines the order in which items are written to a new archive.
type ItemOrder int

const (
	OrderDefault        ItemOrder = iota // Walk order
	OrderDirsFirst                       // Directories, then files, each group in walk order
	OrderAlphabetical                    // A-Z by path
	OrderSizeAscending                   // Smallest first
	OrderSizeDescending                  // Largest first
)

// SortItems returns items arranged by order. The input slice is not modified
// and ties keep their original relative order.
func SortItems(items []*Item, order ItemOrder) []*Item {
	sorted := slices.Clone(items)

	switch order {
	case OrderDirsFirst:
		return partitionStable(sorted, (*Item).IsDir)
	case OrderAlphabetical:
		slices.SortStableFunc(sorted, func(a, b *Item) int {
			return cmp.Compare(a.path, b.path)
		})
	case OrderSizeAscending:
		slices.SortStableFunc(sorted, func(a, b *Item) int {
			return cmp.Compare(a.uncompressedSize, b.uncompressedSize)
		})
	case OrderSizeDescending:
		slices.SortStableFunc(sorted, func(a, b *Item) int {
			return cmp.Compare(b.uncompressedSize, a.uncompressedSize)
		})
	}
	return sorted
}

// partitionStable moves the items matching keepFirst to the front.
func partitionStable(items []*Item, keepFirst func(*Item) bool) []*Item {
	result := make([]*Item, 0, len(items))
	for _, it := range items {
		if keepFirst(it) {
			result = append(result, it)
		}
	}
	for _, it := range items {
		if !keepFirst(it) {
			result = append(result, it)
		}
	}
	return result
}
