// SPDX-License-Identifier: MPL-2.0

package imagebuild

import (
	"strings"
	"testing"
)

func TestRecipeStandalone_CPU(t *testing.T) {
	t.Parallel()

	r := Recipe{
		PythonVersion: "3.10",
		User:          "trainer",
		UserID:        1001,
		WorkDir:       "/home/trainer",
		Env:           []string{"LAUNCHKIT_RUN_ID=abc"},
		Command:       []string{"python", "train.py"},
	}
	out := r.Standalone()

	for _, want := range []string{
		"FROM python:3.10-slim-buster as build\n",
		"FROM python:3.10-slim-buster as base\n",
		"python3-dev gcc",
		"COPY src/requirements.txt .\n",
		"RUN LAUNCHKIT_DISABLE_CACHE=true pip install -r requirements.txt\n",
		"    --uid 1001 \\\n    trainer\n",
		"WORKDIR /home/trainer\n",
		"ENV LAUNCHKIT_RUN_ID=abc\n",
		"COPY --chown=trainer src/ /home/trainer\n",
		"USER trainer\n",
		`ENTRYPOINT ["python","train.py"]`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("standalone recipe missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "nvidia/cuda") {
		t.Error("CPU recipe must not use the CUDA base")
	}
}

func TestRecipeStandalone_GPU(t *testing.T) {
	t.Parallel()

	out := Recipe{GPU: true, User: "u", UserID: 1000, WorkDir: "/home/u", CacheMounts: true}.Standalone()
	for _, want := range []string{
		"FROM " + CUDABaseImage + " as base\n",
		"add-apt-repository -y ppa:deadsnakes/ppa",
		"python" + DefaultPythonVersion + " \\\n    python3-pip",
		"/usr/bin/python" + DefaultPythonVersion + " 1",
		"RUN --mount=type=cache,mode=0777,target=/home/u/.cache,uid=1000,gid=0 pip install",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("GPU recipe missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "ENTRYPOINT") {
		t.Error("no ENTRYPOINT expected without a command")
	}
}

func TestRecipeLayer_WithoutCode(t *testing.T) {
	t.Parallel()

	out := Recipe{Base: "user/image:v2", UserID: 1000, WorkDir: "/app"}.Layer()
	if !strings.HasPrefix(out, "FROM user/image:v2\n") {
		t.Errorf("layer must start from the base:\n%s", out)
	}
	if strings.Contains(out, "COPY") || strings.Contains(out, "pip install") {
		t.Errorf("layer without code must not copy or install:\n%s", out)
	}
	if !strings.Contains(out, "RUN mkdir -p /app/.cache") {
		t.Errorf("cache home should default to the workdir:\n%s", out)
	}
}

func TestContainerBaseURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		raw    string
		hostOS string
		want   string
	}{
		{name: "remote", raw: "https://api.example.com", hostOS: "darwin", want: "https://api.example.com"},
		{name: "localhost on mac", raw: "http://localhost:8080", hostOS: "darwin", want: "http://host.docker.internal:8080"},
		{name: "loopback on mac", raw: "http://127.0.0.1:8080", hostOS: "darwin", want: "http://host.docker.internal:8080"},
		{name: "localhost on linux", raw: "http://localhost:8080", hostOS: "linux", want: "http://localhost:8080"},
		{name: "dev host", raw: "http://api.launchkit.test", hostOS: "linux", want: "http://host.docker.internal:9002"},
		{name: "empty", raw: "", hostOS: "linux", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ContainerBaseURL(tt.raw, tt.hostOS); got != tt.want {
				t.Errorf("ContainerBaseURL(%q, %q) = %q, want %q", tt.raw, tt.hostOS, got, tt.want)
			}
		})
	}
}
