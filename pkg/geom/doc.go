// Package geom holds the small vector and bounding-box types shared by the
// mesh kernel, the skeleton builder and the generator, plus position-derived
// keys used to match vertices and edges across meshes that do not share
// vertex identity.
package geom
