// Package emotion turns face crops into one of seven emotion labels.
//
// Classifier memoises the last label and only asks the model again once
// its Cooldown has elapsed. A call is split into Begin (pick the crop, mark
// the call in flight), Run (model inference, safe to execute on another
// goroutine) and Finish (store the label and restart the cooldown on
// success), so the caller can hand Run to a worker pool.
//
// Negative predictions (Angry, Sad, Fear) weaker than the confidence
// threshold are reported as Neutral.
package emotion
