package render

// palette holds the 8 outline hues. Assignment cycles by cluster index,
// so a cluster keeps its color across re-renders as long as the caller
// presents clusters in a stable order.
var palette = []Color{
	mustHex("#8b5cf6"), // violet
	mustHex("#06b6d4"), // cyan
	mustHex("#22c55e"), // green
	mustHex("#f59e0b"), // amber
	mustHex("#ef4444"), // red
	mustHex("#3b82f6"), // blue
	mustHex("#d946ef"), // fuchsia
	mustHex("#f97316"), // orange
}

// OutlineColor returns the palette color for a cluster index. Indexes
// wrap; negative indexes are folded into range.
func OutlineColor(index int) Color {
	i := index % len(palette)
	if i < 0 {
		i += len(palette)
	}
	return palette[i]
}

// PaletteSize reports how many hues exist before colors repeat.
func PaletteSize() int {
	return len(palette)
}
