package filtergraph

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"
)

const letterbox = "scale=1920:1080:force_original_aspect_ratio=decrease,pad=1920:1080:(ow-iw)/2:(oh-ih)/2,setsar=1"

func sampleItems(n int) []Item {
	items := make([]Item, n)
	for i := range items {
		items[i] = Item{
			Offset:    time.Duration(i) * 1500 * time.Millisecond,
			MusicPath: fmt.Sprintf("/music/%d.mp3", i),
			ImagePath: fmt.Sprintf("/image/%d.png", i),
		}
	}
	return items
}

func TestBuildSingleItem(t *testing.T) {
	params := Params{
		ClipDuration:      30,
		CountdownDuration: 5,
		Countdown:         "/media/countdown.mp4",
		Items:             []Item{{Offset: 90 * time.Second, MusicPath: "/music/song.mp3", ImagePath: "/image/cover.jpg"}},
		Output:            "/out/test.mp4",
	}
	args, err := Build(params)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	graph := strings.Join([]string{
		"[0:v]" + letterbox + ",fade=t=out:st=4:d=1[v0]",
		"[1:v]" + letterbox + ",fade=t=out:st=24:d=1[v1]",
		"[2:a]afade=t=out:st=29:d=1[a0]",
		"[v0][v1]concat=n=2:v=1:a=0[v]",
		"[a0]concat=n=1:v=0:a=1[a]",
	}, ";")
	want := []string{
		"-i", "/media/countdown.mp4",
		"-loop", "1", "-t", "25", "-i", "/image/cover.jpg",
		"-ss", "90", "-t", "30", "-i", "/music/song.mp3",
		"-filter_complex", graph,
		"-map", "[v]", "-map", "[a]",
		"-v", "error", "-progress", "-", "-nostdin", "-shortest",
		"-y", "/out/test.mp4",
	}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("unexpected args:\n got %q\nwant %q", args, want)
	}
}

func TestBuildSplitsCountdownPerItem(t *testing.T) {
	params := Params{ClipDuration: 20, CountdownDuration: 3, Countdown: "cd.mp4", Items: sampleItems(3), Output: "out.mp4"}
	graph, err := Graph(params)
	if err != nil {
		t.Fatalf("Graph returned error: %v", err)
	}
	if !strings.HasPrefix(graph, "[0:v]"+letterbox+",fade=t=out:st=2:d=1,split=3[v0][v2][v4];") {
		t.Fatalf("unexpected countdown clause: %s", graph)
	}
	if !strings.Contains(graph, "[v0][v1][v2][v3][v4][v5]concat=n=6:v=1:a=0[v]") {
		t.Fatalf("unexpected video concat: %s", graph)
	}
	if !strings.Contains(graph, "[a0][a1][a2]concat=n=3:v=0:a=1[a]") {
		t.Fatalf("unexpected audio concat: %s", graph)
	}
	if !strings.Contains(graph, "[5:v]"+letterbox+",fade=t=out:st=16:d=1[v5]") {
		t.Fatalf("expected third image on input 5: %s", graph)
	}
	if !strings.Contains(graph, "[6:a]afade=t=out:st=19:d=1[a2]") {
		t.Fatalf("expected third music on input 6: %s", graph)
	}
}

func TestBuildFormatsOffsetsAndExtraArgs(t *testing.T) {
	params := Params{
		ClipDuration: 10,
		Countdown:    "cd.mp4",
		Items:        sampleItems(2),
		Output:       "out.mp4",
		ExtraArgs:    []string{"-threads", "4"},
	}
	args, err := Build(params)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if idx := indexOf(args, "1.5"); idx < 1 || args[idx-1] != "-ss" {
		t.Fatalf("expected fractional offset after -ss, got %q", args)
	}
	tail := args[len(args)-4:]
	if !reflect.DeepEqual(tail, []string{"-threads", "4", "-y", "out.mp4"}) {
		t.Fatalf("expected resource hints before output, got %q", tail)
	}
}

func TestBuildZeroItemsIsCountdownOnly(t *testing.T) {
	params := Params{ClipDuration: 30, CountdownDuration: 5, Countdown: "cd.mp4", Output: "out.mp4"}
	args, err := Build(params)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	graph := args[indexOf(args, "-filter_complex")+1]
	want := "[0:v]" + letterbox + ",fade=t=out:st=4:d=1[v0];[v0]concat=n=1:v=1:a=0[v]"
	if graph != want {
		t.Fatalf("unexpected graph:\n got %s\nwant %s", graph, want)
	}
	if indexOf(args, "[a]") != -1 {
		t.Fatalf("expected no audio mapping, got %q", args)
	}
	if countOf(args, "-i") != 1 {
		t.Fatalf("expected only the countdown input, got %q", args)
	}
}

func TestBuildRejectsCountdownLongerThanClip(t *testing.T) {
	params := Params{ClipDuration: 5, CountdownDuration: 6, Countdown: "cd.mp4", Items: sampleItems(1), Output: "out.mp4"}
	if _, err := Build(params); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}
	if _, err := Graph(params); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration from Graph, got %v", err)
	}
}

func TestShortDurationsClampFade(t *testing.T) {
	params := Params{ClipDuration: 1, CountdownDuration: 1, Countdown: "cd.mp4", Items: sampleItems(1), Output: "out.mp4"}
	graph, err := Graph(params)
	if err != nil {
		t.Fatalf("Graph returned error: %v", err)
	}
	if !strings.Contains(graph, "[0:v]"+letterbox+",fade=t=out:st=0:d=1[v0]") {
		t.Fatalf("expected clamped countdown fade: %s", graph)
	}
	if !strings.Contains(graph, "[1:v]"+letterbox+"[v1]") {
		t.Fatalf("expected zero-length image without fade: %s", graph)
	}
}

func TestGraphLabelsAreInjectiveAndConnected(t *testing.T) {
	for n := 0; n <= 12; n++ {
		params := Params{ClipDuration: 30, CountdownDuration: 5, Countdown: "cd.mp4", Items: sampleItems(n), Output: "out.mp4"}
		args, err := Build(params)
		if err != nil {
			t.Fatalf("n=%d: Build returned error: %v", n, err)
		}
		graph := args[indexOf(args, "-filter_complex")+1]
		set := Labels(graph)

		defined := map[string]int{}
		for _, name := range set.Defined {
			defined[name]++
		}
		for name, count := range defined {
			if count != 1 {
				t.Fatalf("n=%d: label %q defined %d times", n, name, count)
			}
		}
		consumed := map[string]int{}
		for _, name := range set.Consumed {
			consumed[name]++
			if defined[name] == 0 {
				t.Fatalf("n=%d: label %q consumed but never defined", n, name)
			}
		}
		for name := range defined {
			mapped := indexOf(args, "["+name+"]") != -1
			if consumed[name] != 1 && !mapped {
				t.Fatalf("n=%d: label %q dangling (consumed %d times)", n, name, consumed[name])
			}
		}

		wantVideo := 2 * n
		if n == 0 {
			wantVideo = 1
		}
		if !strings.Contains(graph, fmt.Sprintf("concat=n=%d:v=1:a=0[v]", wantVideo)) {
			t.Fatalf("n=%d: video concat count mismatch: %s", n, graph)
		}
		if got := countOf(set.Consumed, "v0"); got != 1 {
			t.Fatalf("n=%d: expected v0 consumed once, got %d", n, got)
		}
		if countOf(args, "-i") != 1+2*n {
			t.Fatalf("n=%d: expected %d inputs", n, 1+2*n)
		}
		if len(set.Inputs) != 1+2*n {
			t.Fatalf("n=%d: expected every input referenced once, got %v", n, set.Inputs)
		}
	}
}

func TestLabelsParsesClauses(t *testing.T) {
	set := Labels("[0:v]null,split=2[x][y];[x][y]concat=n=2:v=1:a=0[out]")
	if !reflect.DeepEqual(set.Inputs, []string{"0:v"}) {
		t.Fatalf("unexpected inputs: %v", set.Inputs)
	}
	if !reflect.DeepEqual(set.Defined, []string{"x", "y", "out"}) {
		t.Fatalf("unexpected defined labels: %v", set.Defined)
	}
	if !reflect.DeepEqual(set.Consumed, []string{"x", "y"}) {
		t.Fatalf("unexpected consumed labels: %v", set.Consumed)
	}
}

func indexOf(values []string, target string) int {
	for i, v := range values {
		if v == target {
			return i
		}
	}
	return -1
}

func countOf(values []string, target string) int {
	count := 0
	for _, v := range values {
		if v == target {
			count++
		}
	}
	return count
}
