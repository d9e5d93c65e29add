// Package ot implements pairwise and list operational transformation over
// RFC 6902 JSON Patch operations, rewriting concurrent array-index
// references so two replicas converge after applying each other's edits.
package ot

import (
	"docsync/internal/jsonop"
	"docsync/internal/pathutil"
)

// Operation is an alias so callers don't need to import jsonop directly.
type Operation = jsonop.Operation

// reconciler applies an index-shift policy once both operations are known
// to target the same array.
type reconciler func(local, remote Operation) (Operation, Operation, error)

// Pairwise transforms one local and one remote operation against each
// other, selecting the policy by the (local.Op, remote.Op) pair.
func Pairwise(local, remote Operation) (Operation, Operation, error) {
	switch {
	case local.Op == "add" && remote.Op == "add":
		return reconcileArrays(local, remote, addAdd)
	case local.Op == "remove" && remote.Op == "remove":
		return reconcileArrays(local, remote, removeRemove)
	case local.Op == "add" && remote.Op == "remove":
		return reconcileArrays(local, remote, addRemove)
	case local.Op == "remove" && remote.Op == "add":
		// Recurse into add/remove with arguments swapped, then swap the
		// result back so the caller's (local, remote) convention holds.
		newAdd, newRemove, err := reconcileArrays(remote, local, addRemove)
		return newRemove, newAdd, err
	default:
		// replace/replace, test/*, move/*, copy/*, and anything else: pass
		// through unchanged (MVP).
		return local, remote, nil
	}
}

// reconcileArrays applies fn only when both operations target an array
// (have a trailing-or-nested array index) under the same parent path.
// Otherwise the pair passes through unchanged.
func reconcileArrays(local, remote Operation, fn reconciler) (Operation, Operation, error) {
	_, liOK := pathutil.ExtractLastArrayIndex(local.Path)
	_, riOK := pathutil.ExtractLastArrayIndex(remote.Path)
	if !liOK || !riOK {
		return local, remote, nil
	}

	localParent, lok := pathutil.Parent(local.Path)
	remoteParent, rok := pathutil.Parent(remote.Path)
	if !lok || !rok || localParent != remoteParent {
		return local, remote, nil
	}

	return fn(local, remote)
}

func addAdd(local, remote Operation) (Operation, Operation, error) {
	li, _ := pathutil.ExtractLastArrayIndex(local.Path)
	ri, _ := pathutil.ExtractLastArrayIndex(remote.Path)

	if li <= ri {
		newPath, err := pathutil.AdjustArrayIndex(remote.Path, ri, 1)
		if err != nil {
			return local, remote, err
		}
		remote.Path = newPath
	} else {
		newPath, err := pathutil.AdjustArrayIndex(local.Path, li, 1)
		if err != nil {
			return local, remote, err
		}
		local.Path = newPath
	}
	return local, remote, nil
}

func removeRemove(local, remote Operation) (Operation, Operation, error) {
	li, _ := pathutil.ExtractLastArrayIndex(local.Path)
	ri, _ := pathutil.ExtractLastArrayIndex(remote.Path)

	switch {
	case li < ri:
		newPath, err := pathutil.AdjustArrayIndex(remote.Path, ri, -1)
		if err != nil {
			return local, remote, err
		}
		remote.Path = newPath
	case li > ri:
		newPath, err := pathutil.AdjustArrayIndex(local.Path, li, -1)
		if err != nil {
			return local, remote, err
		}
		local.Path = newPath
	default:
		// Same index removed on both sides: caller treats this as a conflict.
	}
	return local, remote, nil
}

func addRemove(local, remote Operation) (Operation, Operation, error) {
	li, _ := pathutil.ExtractLastArrayIndex(local.Path)
	ri, _ := pathutil.ExtractLastArrayIndex(remote.Path)

	if li <= ri {
		newPath, err := pathutil.AdjustArrayIndex(remote.Path, ri, 1)
		if err != nil {
			return local, remote, err
		}
		remote.Path = newPath
	} else {
		newPath, err := pathutil.AdjustArrayIndex(local.Path, li, -1)
		if err != nil {
			return local, remote, err
		}
		local.Path = newPath
	}
	return local, remote, nil
}

// List transforms every operation in local against all of remote (and vice
// versa), so either side, applied after the peer's transformed stream,
// converges. Operations nullified in transit (Op == "") are dropped from
// the output. Any error short-circuits the whole batch.
func List(local, remote []Operation) (transformedLocal, transformedRemote []Operation, err error) {
	transformedLocal = make([]Operation, 0, len(local))
	for _, lop := range local {
		cur := lop
		for _, rop := range remote {
			cur, _, err = Pairwise(cur, rop)
			if err != nil {
				return nil, nil, err
			}
		}
		if cur.Op != "" {
			transformedLocal = append(transformedLocal, cur)
		}
	}

	transformedRemote = make([]Operation, 0, len(remote))
	for _, rop := range remote {
		cur := rop
		for _, lop := range local {
			_, cur, err = Pairwise(lop, cur)
			if err != nil {
				return nil, nil, err
			}
		}
		if cur.Op != "" {
			transformedRemote = append(transformedRemote, cur)
		}
	}

	return transformedLocal, transformedRemote, nil
}
