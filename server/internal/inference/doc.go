// Package inference talks to the model sidecar that hosts the face-mesh
// detector and the emotion classifier.
//
// The sidecar exposes two unary methods on one gRPC service (default name
// healthmirror.inference.v1.Inference) using well-known protobuf types, so
// no generated stubs are needed:
//
//	DetectLandmarks(google.protobuf.BytesValue)  returns (google.protobuf.ListValue)
//	ClassifyEmotion(google.protobuf.ListValue)   returns (google.protobuf.ListValue)
//
// DetectLandmarks receives a JPEG frame and returns a flat [x0, y0, x1, y1, ...]
// list of coordinates normalised to [0, 1]; an empty list means no face.
// ClassifyEmotion receives a row-major 48x48 patch of values in [0, 1] and
// returns seven probabilities in types.EmotionLabels order.
//
// Readiness is the standard grpc.health.v1 Check for the service name.
// WaitReady is called once at startup; a sidecar that never reports SERVING
// puts the server in degraded mode.
package inference
