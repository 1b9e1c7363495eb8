// Package analyzer runs the per-frame pipeline for each monitoring session.
//
// A Registry holds one Analyzer per live session. Analyzer.Process takes a
// decoded frame through these steps:
//
//  1. mirror the frame horizontally
//  2. detect the face mesh; without a face return the "Looking for user..."
//     result and leave all state untouched
//  3. advance the fatigue detector with the average EAR of both eyes
//  4. if the emotion cooldown has elapsed, submit one model call to the
//     Executor; its completion callback stores the new label
//  5. score the frame from the current label, fatigue score and hydration
//
// When the model sidecar was not ready at startup the Registry is created
// degraded and every frame returns the "Model Error" result.
//
// Pool bounds concurrent model calls across sessions with a weighted
// semaphore and rejects work when saturated. Inline runs calls on the frame
// goroutine, which makes the label of an eligible frame reflect that frame.
//
// Every result is added to the session Tally, whose Summary is the record
// persisted when the session ends.
package analyzer
