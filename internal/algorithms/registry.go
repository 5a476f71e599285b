package algorithms

import "nrgchamp/equipment-control/internal/model"

// Supported reports whether kind has a registered algorithm. The
// worker pool (C9) calls this before assembling inputs so an unmapped
// kind fails fast with model.ErrUnknownEquipmentKind rather than
// partway through input assembly.
func Supported(kind model.EquipmentKind) bool {
	_, ok := AllowList[kind]
	return ok
}
