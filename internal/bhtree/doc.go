// Package bhtree implements the Barnes-Hut octree: the bounding cube, the
// arena-backed tree build and the opening-angle traversal.
//
// Trees are rebuilt from scratch every timestep and never updated in
// place. Nodes live in a flat slice and refer to their children by index,
// so a built tree can be shared by any number of goroutines.
//
//	cube, err := bhtree.CubeFromBodies(set.Positions(), pad, zOffset)
//	if err != nil {
//	    return err
//	}
//	tree := bhtree.Build(bhtree.SourcesFromSet(set), cube, 1)
//	frontier := tree.Leaves(pos, id, 0.5)
package bhtree
