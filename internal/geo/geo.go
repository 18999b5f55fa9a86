package geo

import (
	"math"

	"github.com/golang/geo/s2"
)

// EarthRadiusMeters 平均地球半径（IUGG），用于把球面角距离换算成米。
const EarthRadiusMeters = 6371008.8

// Point WGS84 经纬度坐标，单位：度。
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid 校验经纬度是否落在合法范围。
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Distance 返回两点间大圆距离（米）。
func Distance(a, b Point) float64 {
	la := s2.LatLngFromDegrees(a.Lat, a.Lon)
	lb := s2.LatLngFromDegrees(b.Lat, b.Lon)
	return la.Distance(lb).Radians() * EarthRadiusMeters
}

// Within 判断 a、b 距离是否 <= radius（米）。
func Within(a, b Point, radius float64) bool {
	return Distance(a, b) <= radius
}

// Box 经纬度矩形，用于数据库侧的粗筛（可走普通索引）。
type Box struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// Contains 判断点是否落在矩形内（含边界）。
func (b Box) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// BoundingBox 计算以 center 为圆心、radius 为半径的外接矩形。
// 矩形只做粗筛，必然包含圆内所有点；精确判断仍走 Distance。
// 跨越极点或反子午线时经度放开为全范围。
func BoundingBox(center Point, radius float64) Box {
	dLat := radius / EarthRadiusMeters * 180 / math.Pi
	box := Box{
		MinLat: math.Max(center.Lat-dLat, -90),
		MaxLat: math.Min(center.Lat+dLat, 90),
		MinLon: -180,
		MaxLon: 180,
	}
	if box.MinLat <= -90 || box.MaxLat >= 90 {
		return box
	}

	cos := math.Cos(center.Lat * math.Pi / 180)
	dLon := dLat / cos
	if center.Lon-dLon < -180 || center.Lon+dLon > 180 {
		return box
	}
	box.MinLon = center.Lon - dLon
	box.MaxLon = center.Lon + dLon
	return box
}
