// Package subtitles implements the SRT segment model shared by the
// transcription, translation, and voiceover stages, plus the style catalog
// used when captions are burned into the output video.
package subtitles
