// ppewatch watches a camera or uploaded images for safety equipment and
// known faces using a cloud vision service.
//
// Usage:
//
//	ppewatch live --seed faces-bucket/alice.jpg
//	ppewatch serve
//	ppewatch gallery create new_face_collection
package main

func main() {
	Execute()
}
