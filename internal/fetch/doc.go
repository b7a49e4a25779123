// Package fetch resolves task inputs into local media files. Web URLs go
// through yt-dlp with per-platform option profiles, Instagram has an
// alternate HTTP retrieval path for restricted posts, and chat file
// references are pulled through the bot file API.
package fetch
