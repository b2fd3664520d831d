// Package metar decodes U.S. routine aviation weather reports (METAR) into
// typed, immutable [Report] values.
//
// # Data Source
//
// Reports originate from the NWS station files published at
// https://tgftp.nws.noaa.gov/data/observations/metar/stations/<STATION>.TXT.
// Each file holds an issue timestamp line followed by the report line. The
// fetch adapter isolates the report line; this package only ever sees that
// single line.
//
// # Report Grammar
//
// A report is one whitespace-separated line with fields in a fixed order:
//
//	STATION TIME [TYPE] [WIND] [WIND_VAR] [VIS] [RVR] WEATHER_AND_CLOUDS TT/DD [ALT] [RMK ...]
//	KSFO 160456Z 27024G33KT 10SM FEW009 SCT200 15/10 A2999 RMK AO2
//
// Station, time and the temperature/dew point pair are mandatory anchors.
// Every other segment is optional and owns its trailing separator, so an
// absent segment never consumes a token that belongs to a later one. See
// [Extract].
//
// # Field Encodings
//
// Time:
//
//	DDHHMMZ, day-hour-minute in UTC, e.g. "160456Z" = 16th, 04:56Z.
//	Year and month are not encoded and come from the caller's current time.
//
// Wind:
//
//	dddssKT     direction ddd (degrees true), speed ss knots
//	dddssGggKT  as above with gusts to gg knots
//	VRBssKT     variable direction, speed ss knots (no direction reported)
//	00000KT     calm
//
// Visibility (statute miles unless noted):
//
//	10SM     -> "10"
//	1/2SM    -> "1/2"
//	1 1/2SM  -> "1 1/2"
//	M1/4SM   -> "< 1/4"   (less than a quarter mile)
//	P6SM     -> "> 6"
//	9999     -> "9999"    (meters, passed through)
//
// Temperature and dew point:
//
//	[M]NN in whole degrees Celsius; "M" marks a negative value: "M06" = -6.
//
// Altimeter:
//
//	ANNNN in hundredths of inches of mercury: "A2999" = 29.99 inHg.
//
// # Weather and Clouds
//
// Present weather phenomena (BR, -RA, TSRA, ...) and cloud layers share one
// segment. Cloud layers are coverage + height in hundreds of feet with an
// optional convective suffix (FEW009, BKN250CB, OVC010TCU), vertical
// visibility (VV002) or a sky sentinel (CLR, SKC, CAVOK). Once cloud layers
// begin they run to the end of the segment. See [SplitWeatherAndClouds].
//
// # Flight Category
//
// [Enrich] derives the FAA flight category from ceiling and visibility:
//
//	LIFR: ceiling < 500 ft   or visibility < 1 SM
//	IFR:  ceiling < 1000 ft  or visibility < 3 SM
//	MVFR: ceiling <= 3000 ft or visibility <= 5 SM
//	VFR:  otherwise
package metar
