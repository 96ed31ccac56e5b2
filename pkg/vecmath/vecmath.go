// Package vecmath содержит чистые функции над эмбеддингами: нормализация,
// косинусная близость, взвешенное среднее и проверка валидности. Без I/O.
package vecmath

import "math"

// Weighted: вектор с весом для взвешенного усреднения.
type Weighted struct {
	Vector []float32
	Weight float64
}

// Stats описывает, что было отброшено при усреднении.
type Stats struct {
	Used              int
	DimensionMismatch int
	InvalidWeight     int
	EmptyVector       int
	ExpectedDimension int
}

// Skipped возвращает общее количество отброшенных векторов.
func (s Stats) Skipped() int {
	return s.DimensionMismatch + s.InvalidWeight + s.EmptyVector
}

// Dot считает скалярное произведение. Для векторов разной длины возвращает 0.
func Dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}

	return dot
}

// Norm возвращает евклидову норму вектора.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}

	return math.Sqrt(sum)
}

// Normalize возвращает v/||v||. Нулевой вектор возвращается без изменений.
func Normalize(v []float32) []float32 {
	norm := Norm(v)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return v
	}

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}

	return out
}

// CosineSimilarity возвращает косинус угла между векторами в [-1, 1].
// 0: если длины различаются, векторы пустые или один из них нулевой.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, na2, nb2 float64
	for i := range a {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		na2 += va * va
		nb2 += vb * vb
	}

	if na2 == 0 || nb2 == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(na2) * math.Sqrt(nb2))
	if math.IsNaN(sim) {
		return 0
	}

	return Clamp(sim, -1, 1)
}

// WeightedAverage усредняет векторы с весами. Размерность задаёт первый непустой вектор,
// векторы другой размерности пропускаются. Возвращает nil, если не осталось ни одного
// валидного вектора или суммарный вес равен нулю.
func WeightedAverage(items []Weighted) ([]float32, Stats) {
	var (
		stats Stats
		sum   []float64
		total float64
	)

	for _, item := range items {
		if len(item.Vector) == 0 {
			stats.EmptyVector++
			continue
		}

		if item.Weight <= 0 || math.IsNaN(item.Weight) || math.IsInf(item.Weight, 0) {
			stats.InvalidWeight++
			continue
		}

		if sum == nil {
			stats.ExpectedDimension = len(item.Vector)
			sum = make([]float64, stats.ExpectedDimension)
		}

		if len(item.Vector) != stats.ExpectedDimension {
			stats.DimensionMismatch++
			continue
		}

		for i, x := range item.Vector {
			sum[i] += float64(x) * item.Weight
		}
		total += item.Weight
		stats.Used++
	}

	if stats.Used == 0 || total == 0 {
		return nil, stats
	}

	out := make([]float32, len(sum))
	for i, x := range sum {
		out[i] = float32(x / total)
	}

	return out, stats
}

// IsValidEmbedding: false для пустого вектора, NaN/Inf и полностью нулевого вектора.
func IsValidEmbedding(v []float32) bool {
	if len(v) == 0 {
		return false
	}

	nonZero := false
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
		if x != 0 {
			nonZero = true
		}
	}

	return nonZero
}

// Clamp ограничивает значение отрезком [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}

	return x
}
