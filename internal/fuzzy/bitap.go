package fuzzy

import "math"

// score is the Fuse.js match score for an alignment with the given number
// of errors found at currentLocation.
func score(patternLen, errors, currentLocation, expectedLocation int, opts Options) float64 {
	accuracy := float64(errors) / float64(patternLen)
	if opts.IgnoreLocation {
		return accuracy
	}
	proximity := abs(expectedLocation - currentLocation)
	if opts.Distance == 0 {
		if proximity != 0 {
			return 1.0
		}
		return accuracy
	}
	return accuracy + float64(proximity)/float64(opts.Distance)
}

func (c *chunk) search(text []rune, opts Options) Result {
	pattern := c.pattern
	patternLen := len(pattern)
	textLen := len(text)
	expectedLocation := max(0, min(opts.Location+c.startIndex, textLen))
	currentThreshold := opts.Threshold

	// Exact occurrences tighten the threshold before the fuzzy pass.
	bestLocation := expectedLocation
	for {
		index := indexRunes(text, pattern, bestLocation)
		if index < 0 {
			break
		}
		currentThreshold = math.Min(score(patternLen, 0, index, expectedLocation, opts), currentThreshold)
		bestLocation = index + patternLen
	}

	bestLocation = -1
	finalScore := 1.0
	binMax := patternLen + textLen
	mask := uint32(1) << uint(patternLen-1)
	var lastBitArr []uint32

	for i := 0; i < patternLen; i++ {
		// Widest window around expectedLocation that can still score
		// within the threshold at this error count.
		binMin := 0
		binMid := binMax
		for binMin < binMid {
			if score(patternLen, i, expectedLocation+binMid, expectedLocation, opts) <= currentThreshold {
				binMin = binMid
			} else {
				binMax = binMid
			}
			binMid = (binMax-binMin)/2 + binMin
		}
		binMax = binMid

		start := max(1, expectedLocation-binMid+1)
		finish := min(expectedLocation+binMid, textLen) + patternLen

		bitArr := make([]uint32, finish+2)
		bitArr[finish+1] = (uint32(1) << uint(i)) - 1

		for j := finish; j >= start; j-- {
			currentLocation := j - 1
			var charMatch uint32
			if currentLocation < textLen {
				charMatch = c.alphabet[text[currentLocation]]
			}

			bitArr[j] = ((bitArr[j+1] << 1) | 1) & charMatch
			if i > 0 {
				bitArr[j] |= ((at(lastBitArr, j+1) | at(lastBitArr, j)) << 1) | 1 | at(lastBitArr, j+1)
			}

			if bitArr[j]&mask != 0 {
				finalScore = score(patternLen, i, currentLocation, expectedLocation, opts)
				if finalScore <= currentThreshold {
					currentThreshold = finalScore
					bestLocation = currentLocation
					if bestLocation <= expectedLocation {
						break
					}
					start = max(1, 2*expectedLocation-bestLocation)
				}
			}
		}

		// One more error cannot beat the best match so far.
		if score(patternLen, i+1, expectedLocation, expectedLocation, opts) > currentThreshold {
			break
		}
		lastBitArr = bitArr
	}

	return Result{
		IsMatch: bestLocation >= 0,
		Score:   math.Max(0.001, finalScore),
	}
}

func at(arr []uint32, i int) uint32 {
	if i < 0 || i >= len(arr) {
		return 0
	}
	return arr[i]
}

// indexRunes returns the first index >= from where sub occurs in s, or -1.
func indexRunes(s, sub []rune, from int) int {
	n := len(sub)
	for i := max(0, from); i+n <= len(s); i++ {
		match := true
		for k := 0; k < n; k++ {
			if s[i+k] != sub[k] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
