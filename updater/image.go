package updater

import (
	"log/slog"
	"strings"
)

const imageKey = "image"

// SplitImage splits ref at its last colon that has at
// least one character on each side. It reports false
// when ref has no such colon. Only the first line of ref
// is considered.
func SplitImage(ref string) (name, tag string, ok bool) {
	if end := strings.IndexByte(ref, '\n'); end >= 0 {
		ref = ref[:end]
	}

	for i := len(ref) - 2; i >= 1; i-- {
		if ref[i] == ':' {
			return ref[:i], ref[i+1:], true
		}
	}

	return "", "", false
}

// RewriteContainers sets the image of every container
// whose image name equals req.Image to
// "req.Image:req.Version" and returns how many were
// rewritten. A container already on the target version
// is rewritten and counted too.
func RewriteContainers(
	log *slog.Logger,
	containers []interface{},
	req Request,
) int {
	rewritten := 0

	for idx := range containers {
		container, ok := containers[idx].(map[string]interface{})
		if !ok {
			continue
		}

		image, found := container[imageKey]
		if !found {
			continue
		}

		ref, ok := image.(string)
		if !ok {
			log.Debug(
				"ignoring non-string image",
				"index", idx,
			)

			continue
		}

		name, _, ok := SplitImage(ref)
		if !ok {
			log.Info(
				"ignoring image without tag",
				"index", idx,
				"image", ref,
			)

			continue
		}

		if name != req.Image {
			continue
		}

		container[imageKey] = req.Image + ":" + req.Version
		rewritten++
	}

	return rewritten
}
