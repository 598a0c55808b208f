package queue

import "github.com/sells-group/place-import/internal/model"

var allowedTransitions = map[model.ItemStatus][]model.ItemStatus{
	model.ItemStatusPending: {
		model.ItemStatusSearching, model.ItemStatusDuplicate,
		model.ItemStatusFailed, model.ItemStatusSkipped,
	},
	model.ItemStatusSearching: {
		model.ItemStatusEnhancing, model.ItemStatusReady, model.ItemStatusDuplicate,
		model.ItemStatusFailed, model.ItemStatusSkipped,
	},
	model.ItemStatusEnhancing: {
		model.ItemStatusReady, model.ItemStatusFailed, model.ItemStatusSkipped,
	},
	model.ItemStatusReady: {
		model.ItemStatusApproved, model.ItemStatusFailed, model.ItemStatusSkipped,
	},
	model.ItemStatusApproved: {
		model.ItemStatusCompleted, model.ItemStatusFailed, model.ItemStatusSkipped,
	},
	model.ItemStatusFailed: {
		model.ItemStatusSearching, model.ItemStatusPending, model.ItemStatusSkipped,
	},
}

// CanTransition reports whether an item may move from one status to another.
func CanTransition(from, to model.ItemStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
