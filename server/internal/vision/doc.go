// Package vision holds the image-side plumbing of the frame pipeline:
// decoding data-URL frames, mirroring, face-mesh landmarks and the face
// crop that feeds the emotion model.
//
// Landmark detection itself is behind the Source interface; the production
// implementation lives in the inference package.
package vision
